package model

// CategoryLevel is the depth of a node in the taxonomy tree.
type CategoryLevel int

const (
	LevelRegion CategoryLevel = iota
	LevelExamType
	LevelSpecificClass
	LevelSubject
	LevelChapter
)

// CategoryLevels 分类树层数
const CategoryLevels = 5

var levelNames = [CategoryLevels]string{"region", "examType", "specificClass", "subject", "chapter"}

func (l CategoryLevel) String() string {
	if l < 0 || int(l) >= CategoryLevels {
		return "unknown"
	}
	return levelNames[l]
}

func (l CategoryLevel) Valid() bool {
	return l >= LevelRegion && l <= LevelChapter
}

// CategoryNode is one named node of the taxonomy with its ordered children.
// swagger:model CategoryNode
type CategoryNode struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Level    CategoryLevel  `json:"level"`
	Children []CategoryNode `json:"children,omitempty"`
}

// CategoryRecord 分类树的存储行（邻接表）
type CategoryRecord struct {
	UUIDBase
	ParentID *string `gorm:"index;type:varchar(36)"`
	Level    int     `gorm:"not null"`
	Name     string  `gorm:"size:100;not null"`
	Position int     `gorm:"default:0"`
}

func (CategoryRecord) TableName() string {
	return "category_nodes"
}
