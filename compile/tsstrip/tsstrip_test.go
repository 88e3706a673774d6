package tsstrip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripInterface(t *testing.T) {
	src := `interface User {
  id: number;
  name: string;
}

function greet(u: User): string {
  return "hi " + u.name;
}`
	out, err := Strip(src)
	require.NoError(t, err)
	assert.NotContains(t, out, "interface")
	assert.Contains(t, out, `return "hi " + u.name;`)
}

func TestStripParamAndReturnTypes(t *testing.T) {
	out, err := Strip(`function add(a: number, b: number): number {\n  return a + b;\n}`)
	require.NoError(t, err)
	assert.NotContains(t, out, ": number")
}

func TestStripPreservesStringLiterals(t *testing.T) {
	src := `const msg: string = "value: not a type, keep this: colon";`
	out, err := Strip(src)
	require.NoError(t, err)
	assert.Contains(t, out, `"value: not a type, keep this: colon"`)
}

func TestStripAsCastAndNonNull(t *testing.T) {
	out, err := Strip(`const x = (y as Foo)!.bar;`)
	require.NoError(t, err)
	assert.NotContains(t, out, " as Foo")
}

func TestStripTypeAlias(t *testing.T) {
	out, err := Strip("type ID = string;\nconst id = 'a';")
	require.NoError(t, err)
	assert.NotContains(t, out, "type ID")
}

func TestStripSatisfiesClause(t *testing.T) {
	out, err := Strip(`const config = { retries: 3 } satisfies Config;`)
	require.NoError(t, err)
	assert.NotContains(t, out, "satisfies")
	assert.Contains(t, out, `const config = { retries: 3 };`)
}

func TestStripAngleBracketTypeAssertion(t *testing.T) {
	out, err := Strip(`const x = <Foo>raw;
function f() {
  return <Bar>value;
}`)
	require.NoError(t, err)
	assert.NotContains(t, out, "<Foo>")
	assert.NotContains(t, out, "<Bar>")
	assert.Contains(t, out, "const x = raw;")
	assert.Contains(t, out, "return value;")
}

func TestStripExportTypeBraceList(t *testing.T) {
	out, err := Strip(`export type { A, B } from './types';
const x = 1;`)
	require.NoError(t, err)
	assert.NotContains(t, out, "export type")
	assert.Contains(t, out, "const x = 1;")
}

func TestStripInlineImportTypeSpecifier(t *testing.T) {
	out, err := Strip(`import { type Foo, Bar } from './types';
const b = Bar;`)
	require.NoError(t, err)
	assert.NotContains(t, out, "type Foo")
	assert.Contains(t, out, "import { Foo, Bar } from './types';")
}

func TestStripIsIdempotent(t *testing.T) {
	samples := []string{
		`interface A { x: number; }
function f(a: A, b: string): void {
  const y = (a as any)!.x;
  console.log(y, b);
}`,
		`export type Foo = { a: number };`,
		`export type { A, B } from './types';`,
		`import { type Foo, Bar } from './types';`,
		`const config = { retries: 3 } satisfies Config;`,
		`const x = <Foo>raw;`,
		`const s = "plain javascript, no types here";`,
		``,
	}
	for _, src := range samples {
		assert.True(t, StripIsIdempotent(src), src)
	}
}
