package scim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter_Supported(t *testing.T) {
	pred, ok := ParseFilter(`userName eq "alice"`)
	require.True(t, ok)
	assert.Equal(t, ColumnSamAccountName, pred.Column)
	assert.Equal(t, OpEq, pred.Op)
	assert.Equal(t, "alice", pred.Value)
}

func TestParseFilter_UserNameValueIsReducedToSamAccountName(t *testing.T) {
	pred, ok := ParseFilter(`userName eq "x@y"`)
	require.True(t, ok)
	assert.Equal(t, ColumnSamAccountName, pred.Column)
	assert.Equal(t, "x", pred.Value)
}

func TestParseFilter_UserNameValueTruncatedTo20(t *testing.T) {
	pred, ok := ParseFilter(`userName eq "a-very-long-local-part-indeed@example.com"`)
	require.True(t, ok)
	assert.Equal(t, "a-very-long-local-pa", pred.Value)
	assert.Len(t, pred.Value, 20)
}

func TestParseFilter_ExternalIdAliasesID(t *testing.T) {
	pred, ok := ParseFilter(`externalId eq "abc-123"`)
	require.True(t, ok)
	assert.Equal(t, ColumnID, pred.Column)
}

func TestParseFilter_CaseInsensitiveAttrAndOp(t *testing.T) {
	pred, ok := ParseFilter(`USERNAME EQ "bob"`)
	require.True(t, ok)
	assert.Equal(t, ColumnSamAccountName, pred.Column)
	assert.Equal(t, OpEq, pred.Op)
}

func TestParseFilter_UnsupportedAttribute(t *testing.T) {
	_, ok := ParseFilter(`emails eq "a@b.com"`)
	assert.False(t, ok)
}

func TestParseFilter_PresentOperatorUnsupported(t *testing.T) {
	_, ok := ParseFilter(`userName pr`)
	assert.False(t, ok)
}

func TestParseFilter_CompoundFilterUnsupported(t *testing.T) {
	_, ok := ParseFilter(`userName eq "a" and active eq true`)
	assert.False(t, ok)
}

func TestParseFilter_UnquotedValueRejected(t *testing.T) {
	_, ok := ParseFilter(`userName eq alice`)
	assert.False(t, ok)
}

func TestParseFilter_EscapedQuoteRejected(t *testing.T) {
	_, ok := ParseFilter(`userName eq "ali\"ce"`)
	assert.False(t, ok)
}

func TestParseFilter_EmptyString(t *testing.T) {
	_, ok := ParseFilter("")
	assert.False(t, ok)
}

func TestParseFilter_ExtraWhitespaceCollapsed(t *testing.T) {
	pred, ok := ParseFilter(`userName   eq   "alice"`)
	require.True(t, ok)
	assert.Equal(t, "alice", pred.Value)
}
