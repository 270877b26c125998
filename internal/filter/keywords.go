package filter

// Category is one leaf of the design keyword table.
type Category struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Group is a semantic group of categories.
type Group struct {
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
}

// designGroups is the single keyword table shared by IsValidDesignImage and
// Categorize. Iteration order is significant: Categorize returns the first
// category that matches, walking groups and categories in this order.
var designGroups = []Group{
	{Name: "rooms", Categories: []Category{
		{Name: "living_rooms", Keywords: []string{"living room", "lounge", "family room", "sitting room", "den"}},
		{Name: "bedrooms", Keywords: []string{"bedroom", "master suite", "guest room", "headboard", "nursery"}},
		{Name: "kitchens", Keywords: []string{"kitchen", "pantry", "kitchen island", "backsplash", "countertop"}},
		{Name: "bathrooms", Keywords: []string{"bathroom", "vanity", "shower", "bathtub", "powder room"}},
		{Name: "dining_rooms", Keywords: []string{"dining room", "dining table", "breakfast nook"}},
		{Name: "home_offices", Keywords: []string{"home office", "study room", "workspace", "desk setup"}},
		{Name: "outdoor_spaces", Keywords: []string{"patio", "balcony", "terrace", "deck", "porch"}},
		{Name: "entryways", Keywords: []string{"entryway", "foyer", "hallway", "mudroom", "staircase"}},
	}},
	{Name: "styles", Categories: []Category{
		{Name: "modern", Keywords: []string{"modern", "contemporary", "minimalist", "minimal"}},
		{Name: "scandinavian", Keywords: []string{"scandinavian", "nordic", "hygge", "scandi"}},
		{Name: "industrial", Keywords: []string{"industrial", "loft", "exposed brick", "concrete wall"}},
		{Name: "bohemian", Keywords: []string{"bohemian", "boho", "eclectic"}},
		{Name: "mid_century", Keywords: []string{"mid-century", "mid century", "retro", "vintage"}},
		{Name: "farmhouse", Keywords: []string{"farmhouse", "rustic", "country style", "cottage"}},
		{Name: "traditional", Keywords: []string{"traditional", "classic interior", "victorian", "colonial"}},
		{Name: "japandi", Keywords: []string{"japandi", "wabi-sabi", "zen interior", "japanese interior"}},
		{Name: "coastal", Keywords: []string{"coastal", "nautical", "hamptons"}},
		{Name: "luxury", Keywords: []string{"luxury", "glam", "art deco", "opulent"}},
	}},
	{Name: "materials", Categories: []Category{
		{Name: "wood", Keywords: []string{"wood", "wooden", "oak", "walnut", "timber", "hardwood", "parquet"}},
		{Name: "stone", Keywords: []string{"marble", "granite", "stone", "travertine", "terrazzo", "slate"}},
		{Name: "textiles", Keywords: []string{"linen", "velvet", "upholstery", "rug", "curtain", "drapes"}},
		{Name: "metal", Keywords: []string{"brass", "copper", "steel", "chrome", "wrought iron"}},
		{Name: "ceramics", Keywords: []string{"tile", "ceramic", "porcelain", "mosaic", "terracotta"}},
	}},
	{Name: "color_palettes", Categories: []Category{
		{Name: "neutral_palette", Keywords: []string{"neutral", "beige", "greige", "cream", "ivory", "white interior"}},
		{Name: "dark_mood", Keywords: []string{"dark interior", "moody", "charcoal", "black walls", "dark mood"}},
		{Name: "earthy_tones", Keywords: []string{"earthy", "earth tones", "sage", "olive", "ochre"}},
		{Name: "pastel", Keywords: []string{"pastel", "blush", "mint", "lavender"}},
		{Name: "bold_color", Keywords: []string{"colorful", "jewel tones", "emerald", "navy", "bold color"}},
	}},
	{Name: "special_elements", Categories: []Category{
		{Name: "lighting", Keywords: []string{"pendant light", "chandelier", "lamp", "sconce", "lighting", "skylight"}},
		{Name: "furniture", Keywords: []string{"sofa", "couch", "armchair", "sectional", "bookshelf", "sideboard", "ottoman", "furniture", "coffee table"}},
		{Name: "fireplaces", Keywords: []string{"fireplace", "mantel", "hearth"}},
		{Name: "decor_accents", Keywords: []string{"houseplant", "indoor plant", "decor", "vase", "gallery wall", "wall art", "wallpaper"}},
		{Name: "windows_doors", Keywords: []string{"french doors", "bay window", "window seat", "arched doorway"}},
		{Name: "storage", Keywords: []string{"built-in", "shelving", "closet", "wardrobe", "cabinetry"}},
	}},
	{Name: "project_types", Categories: []Category{
		{Name: "renovation", Keywords: []string{"renovation", "remodel", "makeover", "before and after", "refurbish"}},
		{Name: "interior_design", Keywords: []string{"interior design", "interior", "interiors", "home decor", "room design", "moodboard", "mood board", "floor plan"}},
		{Name: "small_spaces", Keywords: []string{"small space", "studio apartment", "tiny house", "apartment"}},
		{Name: "architecture", Keywords: []string{"architecture", "facade", "villa", "penthouse", "residence"}},
	}},
}

// nonDesignTerms reject a photo even when a design keyword also matches,
// so "modern car" is noise rather than a "modern" interior.
var nonDesignTerms = []string{
	// people and body parts
	"person", "people", "man", "woman", "men", "women", "child", "children", "kid", "kids",
	"baby", "family", "portrait", "selfie", "face", "girl", "boy", "couple", "crowd", "hand", "hands",
	// vehicles
	"car", "truck", "bus", "motorcycle", "bicycle", "bike", "train", "airplane", "boat", "vehicle",
	// food
	"food", "pizza", "burger", "sandwich", "cake", "dessert", "fruit", "salad", "meal", "cuisine", "sushi", "pasta", "cocktail",
	// animals
	"dog", "cat", "puppy", "kitten", "bird", "horse", "cow", "wildlife", "animal", "pet",
	// sports
	"football", "soccer", "basketball", "tennis", "golf", "stadium", "athlete", "gym", "fitness", "yoga",
	// events
	"wedding", "party", "concert", "festival", "birthday", "graduation", "conference",
	// raw nature
	"beach", "mountain", "forest", "ocean", "sea", "waterfall", "sunset", "sunrise", "desert", "landscape",
	"lake", "river", "sky", "clouds", "snow", "jungle",
	// gadgets
	"smartphone", "phone", "laptop", "computer", "keyboard", "headphones", "camera", "gadget", "iphone",
	// fashion
	"fashion", "dress", "shoes", "sneakers", "handbag", "jewelry", "outfit", "clothing", "makeup",
	// abstract textures
	"abstract", "bokeh", "gradient", "texture background", "pattern background",
}

// nonDesignURLTerms are checked against the tokenized image URL.
var nonDesignURLTerms = []string{
	"people", "person", "portrait", "selfie", "beach", "mountain", "landscape", "nature",
	"food", "car", "animal", "wedding",
}

// genericTitles are placeholder titles that carry no design signal on their own.
var genericTitles = map[string]struct{}{
	"design image":   {},
	"interior image": {},
	"photo":          {},
	"image":          {},
	"picture":        {},
	"untitled":       {},
	"design":         {},
	"no title":       {},
}

// placeholderHosts serve generic stock placeholders.
var placeholderHosts = []string{
	"picsum.photos",
	"placeholder.com",
	"placehold.co",
	"loremflickr.com",
	"dummyimage.com",
}
