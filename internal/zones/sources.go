package zones

// DefaultSources are the zoning-code sites scraped when none are configured.
func DefaultSources() []Source {
	return []Source{
		{
			URL:                  "https://www.codepublishing.com/WA/AirwayHeights",
			Clicks:               []string{"#AirwayHeights17"},
			LinkSelector:         "a",
			SkipWords:            1,
			Require:              "Zone",
			MatchCase:            true,
			SkipPrefix:           "Zone",
			Exclude:              []string{"Zone Classifications"},
			DescriptionSelectors: []string{".Cite", ".P1, .P2, .P3"},
		},
		{
			URL: "https://library.municode.com/wa/albion/codes/code_of_ordinances",
			Clicks: []string{
				"mcc-codes-toc mcc-product-toc ul > li:nth-child(14) > a",
				"mcc-codes-toc mcc-product-toc ul > li:nth-child(14) > a",
			},
			LinkSelector:         "mcc-codes-content ul > li mcc-codes-content-mini-toc-item a",
			SkipWords:            2,
			CleanHyphen:          true,
			Require:              "district",
			Strict:               true,
			DescriptionSelectors: []string{"mcc-codes-content div > ul > li:nth-child(2)"},
		},
		{
			URL: "https://algona.municipal.codes/",
			Clicks: []string{
				"main div > div > a:nth-of-type(15)",
				"main div > div > a:nth-of-type(15)",
			},
			LinkSelector:         "main article ul > li > a",
			NameSelector:         "main article ul > li > a > span:nth-of-type(2)",
			CleanHyphen:          true,
			Require:              "district",
			Strict:               true,
			DescriptionSelectors: []string{".level6.chunking-small.type-Section.has-history"},
		},
	}
}
