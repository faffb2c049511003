package pace26

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manpen/pace26stride/internal/treeforest"
)

func TestParseInstanceHeaderAndTrees(t *testing.T) {
	src := "c a comment\np maf 4 2\n#s idigest deadbeef\n((1,2),(3,4))\n((1,3),(2,4))\n"
	doc, err := Parse(strings.NewReader(src), 0, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, doc.NumLeaves)
	assert.Equal(t, 2, doc.NumTreesDeclared)
	assert.Equal(t, "deadbeef", doc.Idigest)
	require.Len(t, doc.Trees, 2)
	assert.Equal(t, "((1,2),(3,4))", treeforest.CanonicalForm(doc.Trees[0]))
}

func TestParseSingleLeafTree(t *testing.T) {
	doc, err := Parse(strings.NewReader("1\n"), 4, Options{})
	require.NoError(t, err)
	require.Len(t, doc.Trees, 1)
	assert.Equal(t, "1", treeforest.CanonicalForm(doc.Trees[0]))
}

func TestParseRejectsSingleChildInternal(t *testing.T) {
	_, err := Parse(strings.NewReader("(1)\n"), 4, Options{})
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}

func TestParseRejectsUnterminatedParen(t *testing.T) {
	_, err := Parse(strings.NewReader("(1,2\n"), 4, Options{})
	require.Error(t, err)
}

func TestParseStrideKeyValueOnSolution(t *testing.T) {
	src := "#s runtime 1.5\n#s note \"hello\"\n1\n2\n3\n4\n"
	doc, err := Parse(strings.NewReader(src), 4, Options{})
	require.NoError(t, err)
	assert.Equal(t, `1.5`, string(doc.Info["runtime"]))
	assert.Equal(t, `"hello"`, string(doc.Info["note"]))
}

func TestParseRejectsReservedKeyPrefix(t *testing.T) {
	_, err := Parse(strings.NewReader("#s s_score 5\n1\n"), 4, Options{})
	require.Error(t, err)
}

func TestParseRejectsInvalidJSONValue(t *testing.T) {
	_, err := Parse(strings.NewReader("#s foo not-json\n1\n"), 4, Options{})
	require.Error(t, err)
}

func TestParanoidRejectsTrailingWhitespace(t *testing.T) {
	_, err := Parse(strings.NewReader("p maf 4 2 \n"), 0, Options{Paranoid: true})
	require.Error(t, err)
}

func TestParanoidRejectsDuplicateBlankLines(t *testing.T) {
	_, err := Parse(strings.NewReader("p maf 4 2\n\n\n((1,2),(3,4))\n"), 0, Options{Paranoid: true})
	require.Error(t, err)
}

func TestParanoidRejectsMixedIndentation(t *testing.T) {
	_, err := Parse(strings.NewReader(" \tc comment\n"), 0, Options{Paranoid: true})
	require.Error(t, err)
}
