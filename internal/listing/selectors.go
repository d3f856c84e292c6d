package listing

// Selectors are CSS selectors resolved against the index page (Listing) and against a single
// listing element (everything else).
type Selectors struct {
	Listing       string `mapstructure:"listing"`
	Title         string `mapstructure:"title"`
	LocationParts string `mapstructure:"location_parts"`
	Price         string `mapstructure:"price"`
	SizeItems     string `mapstructure:"size_items"`
	DateValues    string `mapstructure:"date_values"`
	Description   string `mapstructure:"description"`
	DetailTrigger string `mapstructure:"detail_trigger"`
}

// DefaultSelectors matches the flatfy.ua realty-preview card markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Listing:       "article[class='realty-preview']",
		Title:         "h3[class='realty-preview-title'] > button",
		LocationParts: "div[class='realty-preview-sub-title-wrapper'] > a",
		Price:         "div[class*='realty-preview-price--main']",
		SizeItems:     "div[class*='realty-preview-properties-item'] span[class='realty-preview-info']",
		DateValues:    "span[class*='realty-preview-dates__value']",
		Description:   "div[class='realty-preview-description closed'] p",
		DetailTrigger: "button[class*='realty-link-button']",
	}
}

// WithDefaults fills unset selectors from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Listing, d.Listing)
	fill(&s.Title, d.Title)
	fill(&s.LocationParts, d.LocationParts)
	fill(&s.Price, d.Price)
	fill(&s.SizeItems, d.SizeItems)
	fill(&s.DateValues, d.DateValues)
	fill(&s.Description, d.Description)
	fill(&s.DetailTrigger, d.DetailTrigger)
	return s
}
