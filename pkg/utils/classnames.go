// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"slices"
	"strconv"
	"strings"

	twmerge "github.com/Oudwins/tailwind-merge-go"
)

// ClassNames builds a class attribute from conditional inputs and resolves
// conflicting Tailwind utility classes, the last class of a group winning.
//
// Accepted inputs are strings, integers, []string, []any and map[string]bool
// (keys whose value is true, in sorted order). Anything else is ignored.
func ClassNames(inputs ...any) string {
	var classes []string
	for _, input := range inputs {
		classes = collectClasses(classes, input)
	}
	if len(classes) == 0 {
		return ""
	}
	return twmerge.Merge(strings.Join(classes, " "))
}

func collectClasses(classes []string, input any) []string {
	switch v := input.(type) {
	case string:
		return append(classes, strings.Fields(v)...)
	case int:
		if v != 0 {
			classes = append(classes, strconv.Itoa(v))
		}
	case []string:
		for _, s := range v {
			classes = append(classes, strings.Fields(s)...)
		}
	case []any:
		for _, item := range v {
			classes = collectClasses(classes, item)
		}
	case map[string]bool:
		keys := make([]string, 0, len(v))
		for k, on := range v {
			if on {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		for _, k := range keys {
			classes = append(classes, strings.Fields(k)...)
		}
	}
	return classes
}
