package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeState maps a loosely-typed session state onto a caller-defined struct.
// Field matching follows mapstructure conventions; tag name is "state".
//
//	type profile struct {
//		Name  string `state:"user_name"`
//		Email string `state:"user_email"`
//	}
func DecodeState(state StateMap, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "state",
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build state decoder: %w", err)
	}
	if err := dec.Decode(state.Interface()); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return nil
}
