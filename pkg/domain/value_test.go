package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueJSONRoundTripPreservesIntegers(t *testing.T) {
	// 9007199254740991 is MAX_SAFE_INTEGER; a float64 round trip would mangle
	// anything above it and re-type everything below it.
	in := Map(map[string]Value{
		"large_int": Int(9007199254740991),
		"real":      Float(1.25),
		"name":      String("Alice"),
		"active":    Bool(true),
		"tags":      List(String("eng"), String("go")),
		"missing":   Null(),
	})

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Value
	require.NoError(t, json.Unmarshal(data, &out))
	require.True(t, in.Equal(out), "value changed across JSON round trip")

	m, ok := out.AsMap()
	require.True(t, ok)
	i, ok := m["large_int"].AsInt()
	require.True(t, ok, "integer decayed to %s", m["large_int"].Kind())
	require.Equal(t, int64(9007199254740991), i)
}

func TestValueFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
}

func TestStateMapYAML(t *testing.T) {
	src := `
user_name: Bob
attempts: 3
score: 2.5
prefs:
  theme: dark
`
	var state StateMap
	require.NoError(t, yaml.Unmarshal([]byte(src), &state))

	name, ok := state["user_name"].AsString()
	require.True(t, ok)
	require.Equal(t, "Bob", name)

	attempts, ok := state["attempts"].AsInt()
	require.True(t, ok)
	require.Equal(t, int64(3), attempts)

	prefs, ok := state["prefs"].AsMap()
	require.True(t, ok)
	theme, _ := prefs["theme"].AsString()
	require.Equal(t, "dark", theme)
}

func TestDecodeState(t *testing.T) {
	state := StateMap{
		"user_name":  String("Carol"),
		"user_email": String("carol@example.com"),
		"visits":     Int(4),
	}

	var profile struct {
		Name   string `state:"user_name"`
		Email  string `state:"user_email"`
		Visits int    `state:"visits"`
	}
	require.NoError(t, DecodeState(state, &profile))
	require.Equal(t, "Carol", profile.Name)
	require.Equal(t, "carol@example.com", profile.Email)
	require.Equal(t, 4, profile.Visits)
}
