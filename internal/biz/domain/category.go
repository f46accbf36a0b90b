package domain

// Category is the closed set of classifier labels
type Category string

const (
	CategoryTech     Category = "tech"
	CategoryFinance  Category = "finance"
	CategoryCrypto   Category = "crypto"
	CategoryNews     Category = "news"
	CategoryTutorial Category = "tutorial"
	CategoryTools    Category = "tools"
	CategoryOpinion  Category = "opinion"
	CategoryOther    Category = "other"
	CategorySpam     Category = "spam"
)

// DefaultCategoryLabel is the label paired with CategoryOther
const DefaultCategoryLabel = "其他"

var categoryInfo = map[Category]struct {
	label string
	emoji string
}{
	CategoryTech:     {"科技", "🔧"},
	CategoryFinance:  {"金融", "💰"},
	CategoryCrypto:   {"加密货币", "🪙"},
	CategoryNews:     {"新闻", "📰"},
	CategoryTutorial: {"教程", "📚"},
	CategoryTools:    {"工具推荐", "🛠️"},
	CategoryOpinion:  {"观点评论", "💬"},
	CategoryOther:    {DefaultCategoryLabel, "📌"},
	CategorySpam:     {"垃圾信息", "🗑️"},
}

// IsValid checks if the category belongs to the closed set
func (c Category) IsValid() bool {
	_, ok := categoryInfo[c]
	return ok
}

// Emoji returns the display emoji, 📌 for anything unknown
func (c Category) Emoji() string {
	if info, ok := categoryInfo[c]; ok {
		return info.emoji
	}
	return "📌"
}

// Label returns the built-in Chinese label
func (c Category) Label() string {
	if info, ok := categoryInfo[c]; ok {
		return info.label
	}
	return string(c)
}

// Classification is the classifier result for one message
type Classification struct {
	Category   Category
	Label      string
	Confidence float64 // In [0,1]
}

// DefaultClassification is returned whenever classification cannot be trusted
func DefaultClassification() Classification {
	return Classification{
		Category:   CategoryOther,
		Label:      DefaultCategoryLabel,
		Confidence: 0,
	}
}
