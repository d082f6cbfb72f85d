package shopify

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopcarbon12-gif/carbon-gen-sub002/internal/domain"
)

const productsQuery = `query scanVariants($first: Int!, $after: String) {
  products(first: $first, after: $after, query: "status:active") {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      title
      vendor
      featuredImage { url }
      variants(first: 250) {
        nodes {
          id
          sku
          barcode
          price
          inventoryQuantity
          selectedOptions { name value }
          image { url }
        }
      }
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type productsResponse struct {
	Data *struct {
		Products productConnection `json:"products"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type productConnection struct {
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
	Nodes []productNode `json:"nodes"`
}

type imageNode struct {
	URL string `json:"url"`
}

type productNode struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Vendor        string     `json:"vendor"`
	FeaturedImage *imageNode `json:"featuredImage"`
	Variants      struct {
		Nodes []variantNode `json:"nodes"`
	} `json:"variants"`
}

type variantNode struct {
	ID                string     `json:"id"`
	SKU               string     `json:"sku"`
	Barcode           string     `json:"barcode"`
	Price             string     `json:"price"`
	InventoryQuantity *int       `json:"inventoryQuantity"`
	SelectedOptions   []option   `json:"selectedOptions"`
	Image             *imageNode `json:"image"`
}

type option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func errorMessages(errs []graphqlError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if m := strings.TrimSpace(e.Message); m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return "unknown graphql error"
	}
	return strings.Join(msgs, "; ")
}

// flattenProduct turns one product into its variants, carrying the product
// title, vendor and featured image down to every variant.
func flattenProduct(p productNode) []domain.StorefrontVariant {
	productImage := imageURL(p.FeaturedImage)

	variants := make([]domain.StorefrontVariant, 0, len(p.Variants.Nodes))
	for _, v := range p.Variants.Nodes {
		sv := domain.StorefrontVariant{
			ID:                v.ID,
			ProductID:         p.ID,
			ProductTitle:      strings.TrimSpace(p.Title),
			Vendor:            strings.TrimSpace(p.Vendor),
			SKU:               strings.TrimSpace(v.SKU),
			Barcode:           strings.TrimSpace(v.Barcode),
			Price:             parsePrice(v.Price),
			InventoryQuantity: v.InventoryQuantity,
			Image:             imageURL(v.Image),
			ProductImage:      productImage,
		}
		if sv.Image == "" {
			sv.Image = productImage
		}
		for _, o := range v.SelectedOptions {
			switch strings.ToLower(strings.TrimSpace(o.Name)) {
			case "color", "colour":
				sv.Color = strings.TrimSpace(o.Value)
			case "size":
				sv.Size = strings.TrimSpace(o.Value)
			}
		}
		variants = append(variants, sv)
	}
	return variants
}

func imageURL(img *imageNode) string {
	if img == nil {
		return ""
	}
	return strings.TrimSpace(img.URL)
}

func parsePrice(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	v, _ := d.Float64()
	return &v
}
