package models

import "github.com/danielgtaylor/huma/v2"

// Schema describes the number-or-marker encoding of a Threshold in the OpenAPI document
func (Threshold) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Threshold in dB HL, or \"no_response\" when the tone was never heard",
		OneOf: []*huma.Schema{
			{Type: huma.TypeInteger},
			{Type: huma.TypeString, Enum: []any{"no_response"}},
		},
	}
}
