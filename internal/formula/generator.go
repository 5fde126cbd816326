package formula

import (
	"bytes"
	"fmt"
	"strings"
)

// GeneratedHeader marks formulas written by keg.
const GeneratedHeader = "-- This file was generated by keg. DO NOT EDIT."

// Generator renders a Release as a Lua formula.
// Output is deterministic: platforms and fallbacks are sorted by key.
type Generator struct {
	indent string // Indentation string (default: two spaces)
}

// NewGenerator creates a new Lua formula generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
	}
}

// Generate generates Lua code for a release. The release must be valid.
func (g *Generator) Generate(r *Release) (string, error) {
	if r == nil {
		return "", fmt.Errorf("release is required")
	}
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("generate %s: %w", r.ID(), err)
	}

	var buf bytes.Buffer

	buf.WriteString(GeneratedHeader)
	buf.WriteString("\n\n")
	buf.WriteString(luaGlobalFormula + " = {\n")

	g.writeField(&buf, 1, luaFieldName, r.Name)
	if r.Description != "" {
		g.writeField(&buf, 1, luaFieldDesc, r.Description)
	}
	if r.Homepage != "" {
		g.writeField(&buf, 1, luaFieldHomepage, r.Homepage)
	}
	g.writeField(&buf, 1, luaFieldVersion, r.Version)

	g.writePlatforms(&buf, r)
	if len(r.Fallbacks) > 0 {
		g.writeFallbacks(&buf, r)
	}

	buf.WriteString("}\n")

	return buf.String(), nil
}

func (g *Generator) writePlatforms(buf *bytes.Buffer, r *Release) {
	buf.WriteString("\n")
	g.writeIndent(buf, 1)
	buf.WriteString(luaFieldPlatforms + " = {\n")

	for _, key := range r.Keys() {
		a := r.Platforms[key]

		g.writeIndent(buf, 2)
		buf.WriteString("[" + g.quoteLuaString(key.String()) + "] = {\n")
		g.writeField(buf, 3, luaFieldURL, a.URL)
		g.writeField(buf, 3, luaFieldSHA256, a.SHA256)
		if a.SignatureURL != "" {
			g.writeField(buf, 3, luaFieldSignature, a.SignatureURL)
		}
		g.writeInstall(buf, a.Install)
		if a.Caveat != "" {
			g.writeField(buf, 3, luaFieldCaveat, a.Caveat)
		}
		g.writeIndent(buf, 2)
		buf.WriteString("},\n")
	}

	g.writeIndent(buf, 1)
	buf.WriteString("},\n")
}

func (g *Generator) writeInstall(buf *bytes.Buffer, steps []InstallStep) {
	g.writeIndent(buf, 3)
	buf.WriteString(luaFieldInstall + " = {")

	for i, step := range steps {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(" ")
		if step.Source == step.Target {
			buf.WriteString(g.quoteLuaString(step.Source))
			continue
		}
		fmt.Fprintf(buf, "{ %s = %s, %s = %s }",
			luaFieldSource, g.quoteLuaString(step.Source),
			luaFieldTarget, g.quoteLuaString(step.Target))
	}

	buf.WriteString(" },\n")
}

func (g *Generator) writeFallbacks(buf *bytes.Buffer, r *Release) {
	buf.WriteString("\n")
	g.writeIndent(buf, 1)
	buf.WriteString(luaFieldFallbacks + " = {\n")

	for _, key := range r.FallbackKeys() {
		fb := r.Fallbacks[key]

		g.writeIndent(buf, 2)
		buf.WriteString("[" + g.quoteLuaString(key.String()) + "] = {\n")
		g.writeField(buf, 3, luaFieldUse, fb.Use.String())
		g.writeField(buf, 3, luaFieldCaveat, fb.Caveat)
		g.writeIndent(buf, 2)
		buf.WriteString("},\n")
	}

	g.writeIndent(buf, 1)
	buf.WriteString("},\n")
}

func (g *Generator) writeField(buf *bytes.Buffer, depth int, name, value string) {
	g.writeIndent(buf, depth)
	buf.WriteString(name)
	buf.WriteString(" = ")
	buf.WriteString(g.quoteLuaString(value))
	buf.WriteString(",\n")
}

func (g *Generator) writeIndent(buf *bytes.Buffer, depth int) {
	buf.WriteString(strings.Repeat(g.indent, depth))
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
