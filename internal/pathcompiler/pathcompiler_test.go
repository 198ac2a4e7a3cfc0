package pathcompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findChild(n *PathNode, tag string) *PathNode {
	for _, c := range n.Children {
		if c.Kind == KindBranch && c.Tag == tag {
			return c
		}
	}
	return nil
}

func TestCompile_SimpleSharedPrefix(t *testing.T) {
	lines := []string{
		"name=*.p.n",
		"value=*.p.v",
	}
	schema, err := Compile(lines)
	require.NoError(t, err)

	// "*" never becomes a node of its own: it marks the next concrete
	// tag ("p") as find-mode.
	p := findChild(schema.Root, "p")
	require.NotNil(t, p)
	assert.True(t, p.FindMode)
	assert.Len(t, p.Children, 2)

	n := findChild(p, "n")
	require.NotNil(t, n)
	assert.False(t, n.FindMode)
	assert.Equal(t, []string{"name"}, n.ColumnNames)

	v := findChild(p, "v")
	require.NotNil(t, v)
	assert.Equal(t, []string{"value"}, v.ColumnNames)
}

func TestCompile_RootPrefix(t *testing.T) {
	lines := []string{
		"=catalog.item",
		"sku=.code",
	}
	schema, err := Compile(lines)
	require.NoError(t, err)

	catalog := findChild(schema.Root, "catalog")
	require.NotNil(t, catalog)
	item := findChild(catalog, "item")
	require.NotNil(t, item)
	code := findChild(item, "code")
	require.NotNil(t, code)
	assert.Equal(t, []string{"sku"}, code.ColumnNames)
}

func TestCompile_PropertyLeaf(t *testing.T) {
	lines := []string{"id=item:id"}
	schema, err := Compile(lines)
	require.NoError(t, err)

	item := findChild(schema.Root, "item")
	require.NotNil(t, item)
	require.Len(t, item.Children, 1)
	assert.Equal(t, KindProperty, item.Children[0].Kind)
	assert.Equal(t, "id", item.Children[0].Property)
	assert.Equal(t, []string{"id"}, item.Children[0].ColumnNames)
}

func TestCompile_StarRunElision(t *testing.T) {
	lines := []string{"x=*.*.leaf"}
	schema, err := Compile(lines)
	require.NoError(t, err)

	// Consecutive "*" tags collapse to one modifier; "leaf" sits
	// directly under the root, in find-mode.
	leaf := findChild(schema.Root, "leaf")
	require.NotNil(t, leaf)
	assert.True(t, leaf.FindMode)
}

func TestCompile_DuplicateNameRejected(t *testing.T) {
	lines := []string{"x=a.b", "x=c.d"}
	_, err := Compile(lines)
	assert.Error(t, err)
}

func TestCompile_DefaultTemplateFollowsDeclarationOrder(t *testing.T) {
	lines := []string{"b=root.b", "a=root.a"}
	schema, err := Compile(lines)
	require.NoError(t, err)
	require.Len(t, schema.Template.Fields, 2)
	assert.Equal(t, "b", schema.Template.Fields[0].Name)
	assert.Equal(t, "a", schema.Template.Fields[1].Name)
}

func TestCompile_HeaderLineWithLiteralAndKey(t *testing.T) {
	lines := []string{
		"name=root.n",
		"header: !name 'units'",
	}
	schema, err := Compile(lines)
	require.NoError(t, err)
	require.Len(t, schema.Template.Fields, 1)
	f := schema.Template.Fields[0]
	assert.Equal(t, "name", f.Name)
	require.Len(t, f.Items, 2)
	assert.True(t, f.Items[0].IsKey)
	assert.Equal(t, "name", f.Items[0].Column)
	assert.True(t, f.Items[1].Literal)
	assert.Equal(t, "units", f.Items[1].Text)
}

func TestCompile_HeaderReferencesUnknownColumn(t *testing.T) {
	lines := []string{
		"name=root.n",
		"header: ghost",
	}
	_, err := Compile(lines)
	assert.Error(t, err)
}

func TestCompile_PositionalOffsetTriggersSingleRow(t *testing.T) {
	lines := []string{
		"a=root.a",
		"header: a a.2",
	}
	schema, err := Compile(lines)
	require.NoError(t, err)
	assert.True(t, schema.Template.SingleRow)
}

func TestCompile_IgnoresFlagAndCommentLines(t *testing.T) {
	lines := []string{
		"# a comment",
		"input: data/*.xml",
		"",
		"name=root.n",
	}
	schema, err := Compile(lines)
	require.NoError(t, err)
	assert.Len(t, schema.Template.Fields, 1)
}
