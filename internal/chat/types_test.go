package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholder_Image(t *testing.T) {
	p := ImagePart("image/jpeg", "cat", []byte{0xff, 0xd8})
	assert.Equal(t, "[Image: image/jpeg] (Caption: cat)", p.Placeholder())
}

func TestPlaceholder_ImageNoCaption(t *testing.T) {
	p := ImagePart("image/png", "", nil)
	assert.Equal(t, "[Image: image/png]", p.Placeholder())
}

func TestPlaceholder_ImageNoMime(t *testing.T) {
	p := Part{Type: PartImage}
	assert.Equal(t, "[Image: image]", p.Placeholder())
}

func TestPlaceholder_Text(t *testing.T) {
	assert.Equal(t, "hello", TextPart("hello").Placeholder())
}

func TestEncodeParts_DropsImageBytes(t *testing.T) {
	data, err := EncodeParts([]Part{ImagePart("image/jpeg", "cat", []byte("raw-bytes"))})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "raw-bytes")
	assert.Contains(t, string(data), "image/jpeg")

	parts, err := DecodeParts(data)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, PartImage, parts[0].Type)
	assert.Equal(t, "cat", parts[0].Caption)
	assert.Nil(t, parts[0].Data)
}

func TestEncodeParts_NilIsEmptyArray(t *testing.T) {
	data, err := EncodeParts(nil)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestDecodeParts_FunctionCall(t *testing.T) {
	raw := `[{"type":"function_call","function_call":{"name":"lookup","args":{"q":"go"}}}]`
	parts, err := DecodeParts([]byte(raw))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	require.NotNil(t, parts[0].FunctionCall)
	assert.Equal(t, "lookup", parts[0].FunctionCall.Name)
}

func TestDecodeParts_Malformed(t *testing.T) {
	_, err := DecodeParts([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestDecodeParts_Empty(t *testing.T) {
	parts, err := DecodeParts(nil)
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestTurn_RoundTrip(t *testing.T) {
	turn := Turn{
		Role:  RoleModel,
		Parts: []Part{TextPart("hi"), {Type: PartFunctionResponse, FunctionResponse: &FunctionResponse{Name: "lookup"}}},
	}
	data, err := json.Marshal(turn)
	require.NoError(t, err)

	var back Turn
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, turn.Role, back.Role)
	require.Len(t, back.Parts, 2)
	assert.Equal(t, "hi", back.Parts[0].Text)
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleModel.Valid())
	assert.False(t, Role("system").Valid())
}
