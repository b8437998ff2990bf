// Package codec encodes component trees to the storable configuration blob
// and back. Strings are percent-escaped before encoding so user-entered text
// containing structural metacharacters can never corrupt the payload.
package codec

import (
	"encoding/json"
	"net/url"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

// Encode serializes a component tree into the storable string form.
// It is total over well-formed trees: any tree Decode accepts, Encode
// reproduces byte-for-byte after a round trip.
func Encode(tree models.ComponentTree) (string, error) {
	if tree == nil {
		tree = models.ComponentTree{}
	}
	escaped := make(models.ComponentTree, len(tree))
	for kind, instances := range tree {
		out := make([]models.ComponentInstance, len(instances))
		for i, inst := range instances {
			out[i] = escapeInstance(inst)
		}
		escaped[kind] = out
	}
	data, err := json.Marshal(escaped)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode components")
	}
	return string(data), nil
}

// Decode parses a stored configuration blob. An empty blob decodes to an
// empty tree; malformed input fails with ErrCorruptConfig rather than
// returning a partial structure.
func Decode(raw string) (models.ComponentTree, error) {
	if raw == "" {
		return models.ComponentTree{}, nil
	}
	var escaped models.ComponentTree
	if err := json.Unmarshal([]byte(raw), &escaped); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCorruptConfig.Code, appErrors.ErrCorruptConfig.Status, appErrors.ErrCorruptConfig.Message)
	}
	tree := make(models.ComponentTree, len(escaped))
	for kind, instances := range escaped {
		out := make([]models.ComponentInstance, len(instances))
		for i, inst := range instances {
			plain, err := unescapeInstance(inst)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrCorruptConfig.Code, appErrors.ErrCorruptConfig.Status, appErrors.ErrCorruptConfig.Message)
			}
			out[i] = plain
		}
		tree[kind] = out
	}
	return tree, nil
}

func escapeInstance(inst models.ComponentInstance) models.ComponentInstance {
	out := models.ComponentInstance{
		ID:     url.QueryEscape(inst.ID),
		Plugin: url.QueryEscape(inst.Plugin),
	}
	if inst.FormData != nil {
		out.FormData = make(models.FormData, len(inst.FormData))
		for k, v := range inst.FormData {
			out.FormData[url.QueryEscape(k)] = url.QueryEscape(v)
		}
	}
	return out
}

func unescapeInstance(inst models.ComponentInstance) (models.ComponentInstance, error) {
	id, err := url.QueryUnescape(inst.ID)
	if err != nil {
		return models.ComponentInstance{}, err
	}
	plugin, err := url.QueryUnescape(inst.Plugin)
	if err != nil {
		return models.ComponentInstance{}, err
	}
	out := models.ComponentInstance{ID: id, Plugin: plugin}
	if inst.FormData != nil {
		out.FormData = make(models.FormData, len(inst.FormData))
		for k, v := range inst.FormData {
			key, err := url.QueryUnescape(k)
			if err != nil {
				return models.ComponentInstance{}, err
			}
			value, err := url.QueryUnescape(v)
			if err != nil {
				return models.ComponentInstance{}, err
			}
			out.FormData[key] = value
		}
	}
	return out, nil
}
