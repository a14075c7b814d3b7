package wardrobe

// Clothing types the backend accepts. The wire value is the uppercase
// enum name.
const (
	TypeTop       = "TOP"
	TypeBottom    = "BOTTOM"
	TypeShoes     = "SHOES"
	TypeAccessory = "ACCESSORY"
	TypeDress     = "DRESS"
	TypeOuterwear = "OUTERWEAR"
)

// Sort orders for search requests
const (
	SortAscending  = "ASCENDING"
	SortDescending = "DESCENDING"
)

// ClothingItem is one garment in the closet
type ClothingItem struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	OriginalImageURL string `json:"original_image_url"`
	ModifiedImageURL string `json:"modified_image_url,omitempty"`
	Color            string `json:"color,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// Search matches free text against the searchable attributes, or only
// those named in SearchIn.
type Search struct {
	SearchText string   `json:"searchText,omitempty"`
	SearchIn   []string `json:"searchIn,omitempty"`
}

// FilterItem constrains one attribute. Exactly one of Value or ValueList
// should be set.
type FilterItem struct {
	Attribute string   `json:"attribute"`
	Value     string   `json:"value,omitempty"`
	ValueList []string `json:"valueList,omitempty"`
}

// Filter is a conjunction of attribute constraints
type Filter struct {
	FilterItems []FilterItem `json:"filterItems,omitempty"`
}

// Sort orders search results; the backend defaults to createdAt descending
type Sort struct {
	SortBy    string `json:"sortBy,omitempty"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// SearchRequest is the shared paginated-search body for closet and outfits
type SearchRequest struct {
	Search  *Search `json:"search,omitempty"`
	Filter  *Filter `json:"filter,omitempty"`
	Sort    *Sort   `json:"sort,omitempty"`
	Page    int     `json:"page"`
	MaxSize int     `json:"maxSize"`
}

// ClothingItemPage is one page of closet search results
type ClothingItemPage struct {
	Items      []ClothingItem `json:"items"`
	TotalCount int64          `json:"totalCount"`
	HasNext    bool           `json:"hasNext"`
}

// OutfitClothingItem places one garment on the outfit canvas. Positions
// and sizes are percentages of the canvas so layouts survive resizing.
type OutfitClothingItem struct {
	ClothingItemID   string  `json:"clothingItemId"`
	PositionXPercent float64 `json:"positionXPercent"`
	PositionYPercent float64 `json:"positionYPercent"`
	WidthPercent     float64 `json:"widthPercent"`
	HeightPercent    float64 `json:"heightPercent"`
	ZIndex           int     `json:"zIndex"`

	// Populated by the backend on reads so the canvas can render without
	// a second lookup
	ModifiedImageURL string `json:"modified_image_url,omitempty"`
}

// Outfit is a saved canvas arrangement
type Outfit struct {
	ID             string               `json:"id"`
	OutfitImageURL string               `json:"outfit_image_url"`
	ClothingItems  []OutfitClothingItem `json:"clothingItems"`
	CreatedAt      string               `json:"createdAt,omitempty"`
	Tags           []string             `json:"tags,omitempty"`
	UserID         string               `json:"userId,omitempty"`
}

// OutfitPage is one page of outfit search results
type OutfitPage struct {
	Items      []Outfit `json:"items"`
	TotalCount int64    `json:"totalCount"`
	HasNext    bool     `json:"hasNext"`
}
