package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImports(t *testing.T) {
	src := `import express from 'express'
import 'side-effect'
const fs = require('fs')
const mod = await import('./plugin')
`
	fa, err := Parse("app.js", []byte(src))
	require.NoError(t, err)
	require.Len(t, fa.Imports, 4)

	assert.Equal(t, "fs", fa.Imports[2].Source)
	assert.False(t, fa.Imports[2].Dynamic)
	assert.Equal(t, "./plugin", fa.Imports[3].Source)
	assert.True(t, fa.Imports[3].Dynamic)
	assert.ElementsMatch(t, []string{"express", "side-effect", "fs", "./plugin"}, fa.ImportSources())
}

func TestParseExports(t *testing.T) {
	src := `export function handle(req) {}
export const limit = 10
export { first, second as renamed }
module.exports.legacy = handle
exports.other = 1
`
	fa, err := Parse("app.js", []byte(src))
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"handle", "limit", "first", "renamed", "legacy", "other"},
		fa.Exports)
}

func TestParseFunctionsWithBodyRanges(t *testing.T) {
	src := `function outer(a) {
  const x = 1
  return inner(x)
}

const inner = (v) => {
  return v + 1
}
`
	fa, err := Parse("app.js", []byte(src))
	require.NoError(t, err)
	require.Len(t, fa.Functions, 2)

	assert.Equal(t, "outer", fa.Functions[0].Name)
	assert.Equal(t, 1, fa.Functions[0].StartLine)
	assert.Equal(t, 4, fa.Functions[0].EndLine)

	assert.Equal(t, "inner", fa.Functions[1].Name)
	assert.Equal(t, 6, fa.Functions[1].StartLine)
	assert.Equal(t, 8, fa.Functions[1].EndLine)
}

func TestParsePythonDefIndentation(t *testing.T) {
	src := "def handler(event):\n    data = event\n    return data\n\nprint(1)\n"
	fa, err := Parse("app.py", []byte(src))
	require.NoError(t, err)
	require.Len(t, fa.Functions, 1)
	assert.Equal(t, "handler", fa.Functions[0].Name)
	assert.Equal(t, 1, fa.Functions[0].StartLine)
	assert.Equal(t, 4, fa.Functions[0].EndLine)
}

func TestParseCallsAndDataFlowSketch(t *testing.T) {
	src := `const id = req.query.id
fetch("https://collect.example.com", id)
execSync(cmd)
helper(a, b)
`
	fa, err := Parse("app.js", []byte(src))
	require.NoError(t, err)

	assert.Contains(t, fa.UserInputSources, "req.query.id")

	require.NotEmpty(t, fa.ExternalCalls)
	assert.Equal(t, "fetch", fa.ExternalCalls[0].Name)
	assert.Equal(t, 2, fa.ExternalCalls[0].Line)

	require.NotEmpty(t, fa.SensitiveOps)
	assert.Equal(t, "execSync", fa.SensitiveOps[0].Name)

	var callees []string
	for _, c := range fa.Calls {
		callees = append(callees, c.Callee)
	}
	assert.Contains(t, callees, "helper")
}

func TestParseRejectsBinaryAndImbalanced(t *testing.T) {
	_, err := Parse("x.bin", []byte{0xff, 0xfe, 0x00, 0x80})
	assert.ErrorIs(t, err, ErrUnparsable)

	_, err = Parse("x.js", []byte("function a() { { { { {\n"))
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestMarkExportedFunctions(t *testing.T) {
	src := `export function pub() {
  return 1
}
function priv() {
  return 2
}
module.exports = { pub }
`
	fa, err := Parse("app.js", []byte(src))
	require.NoError(t, err)
	byName := map[string]Function{}
	for _, fn := range fa.Functions {
		byName[fn.Name] = fn
	}
	assert.True(t, byName["pub"].Exported)
	assert.False(t, byName["priv"].Exported)
}
