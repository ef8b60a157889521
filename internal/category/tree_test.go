package category

import (
	"testing"

	"quiz_portal/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []model.CategoryNode {
	return []model.CategoryNode{
		{Name: "Asia", Children: []model.CategoryNode{
			{Name: "Board", Level: 1, Children: []model.CategoryNode{
				{Name: "Class 10", Level: 2, Children: []model.CategoryNode{
					{Name: "Physics", Level: 3, Children: []model.CategoryNode{
						{Name: "Optics", Level: 4},
						{Name: "Motion", Level: 4},
					}},
					{Name: "Chemistry", Level: 3},
				}},
			}},
			{Name: "Entrance", Level: 1},
		}},
		{Name: "Europe"},
	}
}

func fullPath() model.CategoryPath {
	return model.CategoryPath{Region: "Asia", ExamType: "Board", SpecificClass: "Class 10", Subject: "Physics", Chapter: "Optics"}
}

func TestOptions_FollowPrefix(t *testing.T) {
	tree := sampleTree()

	assert.Equal(t, []string{"Asia", "Europe"}, Options(tree, model.CategoryPath{}, model.LevelRegion))
	assert.Equal(t, []string{"Board", "Entrance"}, Options(tree, model.CategoryPath{Region: "Asia"}, model.LevelExamType))
	assert.Equal(t, []string{"Optics", "Motion"}, Options(tree, fullPath(), model.LevelChapter))

	// prefix not selected
	assert.Nil(t, Options(tree, model.CategoryPath{}, model.LevelExamType))
	// unknown prefix
	assert.Nil(t, Options(tree, model.CategoryPath{Region: "Mars"}, model.LevelExamType))
}

func TestSelectors_CascadeAndInvalidateStaleLevels(t *testing.T) {
	tree := sampleTree()

	fields := Selectors(tree, model.CategoryPath{Region: "Asia", ExamType: "Board", SpecificClass: "Class 11", Subject: "Physics"})
	require.Len(t, fields, model.CategoryLevels)

	assert.Equal(t, "Asia", fields[0].Value)
	assert.Equal(t, "Board", fields[1].Value)
	// Class 11 is not an option, so it and everything below it is cleared
	assert.Equal(t, "", fields[2].Value)
	assert.False(t, fields[2].Disabled)
	assert.Equal(t, "", fields[3].Value)
	assert.True(t, fields[3].Disabled)
	assert.True(t, fields[4].Disabled)
}

func TestValidatePath(t *testing.T) {
	tree := sampleTree()

	assert.NoError(t, ValidatePath(tree, fullPath(), true))
	assert.NoError(t, ValidatePath(tree, model.CategoryPath{Region: "Asia"}, false))
	assert.NoError(t, ValidatePath(tree, model.CategoryPath{}, false))

	assert.ErrorIs(t, ValidatePath(tree, model.CategoryPath{Region: "Asia"}, true), ErrIncomplete)
	assert.ErrorIs(t, ValidatePath(tree, model.CategoryPath{ExamType: "Board"}, false), ErrInvalidPath)

	p := fullPath()
	p.Chapter = "Waves"
	assert.ErrorIs(t, ValidatePath(tree, p, true), ErrNotFound)
}

func TestInsert_UniqueWithinParent(t *testing.T) {
	tree := sampleTree()

	out, err := Insert(tree, model.CategoryPath{Region: "Asia"}, "Olympiad")
	require.NoError(t, err)
	assert.Equal(t, []string{"Board", "Entrance", "Olympiad"}, Options(out, model.CategoryPath{Region: "Asia"}, model.LevelExamType))
	// input untouched
	assert.Len(t, tree[0].Children, 2)

	_, err = Insert(tree, model.CategoryPath{Region: "Asia"}, "Board")
	assert.ErrorIs(t, err, ErrDuplicateName)

	// same name under another parent is fine
	_, err = Insert(tree, model.CategoryPath{Region: "Europe"}, "Board")
	assert.NoError(t, err)

	_, err = Insert(tree, fullPath(), "Too deep")
	assert.ErrorIs(t, err, ErrTooDeep)

	_, err = Insert(tree, model.CategoryPath{Region: "Asia"}, "  ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestDelete_Cascades(t *testing.T) {
	tree := sampleTree()

	node, err := Resolve(tree, model.CategoryPath{Region: "Asia", ExamType: "Board"})
	require.NoError(t, err)
	assert.Equal(t, 6, Count(*node))

	out, err := Delete(tree, model.CategoryPath{Region: "Asia", ExamType: "Board"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Entrance"}, Options(out, model.CategoryPath{Region: "Asia"}, model.LevelExamType))
	_, err = Resolve(out, fullPath())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Delete(tree, model.CategoryPath{Region: "Nowhere"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRename(t *testing.T) {
	tree := sampleTree()

	out, err := Rename(tree, model.CategoryPath{Region: "Asia", ExamType: "Entrance"}, "Entrance exams")
	require.NoError(t, err)
	assert.Equal(t, []string{"Board", "Entrance exams"}, Options(out, model.CategoryPath{Region: "Asia"}, model.LevelExamType))

	_, err = Rename(tree, model.CategoryPath{Region: "Asia", ExamType: "Entrance"}, "Board")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestValidateTree(t *testing.T) {
	out, err := ValidateTree(sampleTree())
	require.NoError(t, err)
	assert.Equal(t, model.LevelChapter, out[0].Children[0].Children[0].Children[0].Children[0].Level)

	dup := sampleTree()
	dup[1].Name = "Asia"
	_, err = ValidateTree(dup)
	assert.ErrorIs(t, err, ErrDuplicateName)

	deep := sampleTree()
	deep[0].Children[0].Children[0].Children[0].Children[0].Children = []model.CategoryNode{{Name: "Section"}}
	_, err = ValidateTree(deep)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestWalk_VisitsEveryNodeWithPath(t *testing.T) {
	var paths []model.CategoryPath
	Walk(sampleTree(), func(p model.CategoryPath, _ model.CategoryNode) {
		paths = append(paths, p)
	})
	assert.Len(t, paths, 9)
	assert.Contains(t, paths, fullPath())
}
