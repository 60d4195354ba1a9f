package retailer

import "github.com/law-makers/pricecrawl/pkg/models"

// Vea is the Vea Argentina storefront (VTEX)
func Vea() Profile {
	const base = "https://www.vea.com.ar"
	return Profile{
		Info: models.Retailer{ID: "VEA", Name: "Vea", BaseURL: base},
		CategoryURLs: []string{
			base + "/almacen",
			base + "/bebidas",
			base + "/carnes",
			base + "/lacteos",
			base + "/perfumeria",
			base + "/congelados",
			base + "/limpieza",
			base + "/panaderia-y-reposteria",
			base + "/quesos-y-fiambres",
		},
		ProductMarker: "p",
		Deny: []string{
			"/institucional/",
			"terminos-y-condiciones",
			"politicas-de-privacidad",
			"argentina.gob.ar",
			"defensadelconsumidor",
		},
		Selectors: models.SelectorMap{
			Name:            models.Selector{Query: ".vtex-store-components-3-x-productNameContainer"},
			Brand:           models.Selector{Query: ".vtex-store-components-3-x-productBrand"},
			SKU:             models.Selector{Query: ".vtex-product-identifier-0-x-product-identifier__value"},
			Image:           models.Selector{Query: ".vtex-store-components-3-x-productImageTag", Attr: "src"},
			DiscountedPrice: models.Selector{Query: "#priceContainer"},
			OriginalPrice:   models.Selector{Query: ".veaargentina-store-theme-2t-mVsKNpKjmCAEM_AMCQH"},
			PricePerUnit:    models.Selector{Query: ".veaargentina-store-theme-1QiyQadHj-1_x9js9EXUYK"},
			Discount:        models.Selector{Query: ".veaargentina-store-theme-SpFtPOZlANEkxX04GqL31"},
		},
	}
}
