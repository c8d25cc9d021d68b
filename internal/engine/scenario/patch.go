// internal/engine/scenario/patch.go
package scenario

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/models"
)

// Apply returns a new profile with change merged over base. base is never
// modified. Keys may be nested objects or dotted paths; a key that does not
// name a profile field is rejected.
func Apply(base *models.ApplicantProfile, change models.ScenarioChange) (*models.ApplicantProfile, error) {
	doc, err := toMap(base)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	if err := checkOverlap(change); err != nil {
		return nil, errors.NewInvalidScenarioError(err.Error(), err)
	}
	patch, err := expand(change)
	if err != nil {
		return nil, errors.NewInvalidScenarioError(err.Error(), err)
	}
	merge(doc, patch)

	out := &models.ApplicantProfile{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           out,
	})
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, errors.NewInvalidScenarioError(err.Error(), err)
	}
	return out, nil
}

func toMap(profile *models.ApplicantProfile) (map[string]interface{}, error) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return doc, nil
}

// expand turns dotted keys into nested maps and copies nested maps so the
// caller's change is never aliased into the result.
func expand(change models.ScenarioChange) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for key, value := range change {
		parts := strings.Split(key, ".")
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				return nil, fmt.Errorf("invalid field path %q", key)
			}
		}

		node := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := node[p].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				node[p] = next
			}
			node = next
		}

		leaf := parts[len(parts)-1]
		if nested, ok := value.(map[string]interface{}); ok {
			sub, err := expand(nested)
			if err != nil {
				return nil, err
			}
			existing, ok := node[leaf].(map[string]interface{})
			if !ok {
				existing = map[string]interface{}{}
			}
			merge(existing, sub)
			node[leaf] = existing
			continue
		}
		node[leaf] = value
	}
	return out, nil
}

// checkOverlap rejects changes where one field path is set twice or sits
// under another set path, e.g. "financialInfo": null together with
// "financialInfo.liquidAssets". The outcome would depend on key order.
func checkOverlap(change models.ScenarioChange) error {
	var paths []string
	collectPaths("", change, &paths)
	sort.Strings(paths)

	seen := make(map[string]bool, len(paths))
	for _, path := range paths {
		if seen[path] {
			return fmt.Errorf("field %q is changed more than once", path)
		}
		seen[path] = true
	}
	for _, path := range paths {
		parts := strings.Split(path, ".")
		for i := 1; i < len(parts); i++ {
			if prefix := strings.Join(parts[:i], "."); seen[prefix] {
				return fmt.Errorf("field %q overlaps with %q", path, prefix)
			}
		}
	}
	return nil
}

// collectPaths lists the leaf paths a change writes. Empty objects write
// nothing.
func collectPaths(prefix string, change map[string]interface{}, out *[]string) {
	for key, value := range change {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			collectPaths(path, nested, out)
			continue
		}
		*out = append(*out, path)
	}
}

// merge overlays src onto dst. Objects merge key by key; any other value,
// arrays included, replaces what was there.
func merge(dst, src map[string]interface{}) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]interface{})
		dstMap, dstIsMap := dst[key].(map[string]interface{})
		if srcIsMap && dstIsMap {
			merge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			fresh := map[string]interface{}{}
			merge(fresh, srcMap)
			dst[key] = fresh
			continue
		}
		dst[key] = value
	}
}
