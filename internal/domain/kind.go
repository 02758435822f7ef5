package domain

import "strings"

// KindFamily groups the node type tags that share one computation rule.
// Editors use several spellings for the same behavior ("process" and
// "transform", "output" and "sink"), so dispatch happens on the family.
type KindFamily string

// Kind families.
const (
	FamilySource     KindFamily = "source"
	FamilyVariable   KindFamily = "variable"
	FamilyTransform  KindFamily = "transform"
	FamilyAggregator KindFamily = "aggregator"
	FamilySink       KindFamily = "sink"
	FamilyGeneric    KindFamily = "generic"
)

// Canonical node type tags.
const (
	KindGeneric     = "generic"
	KindSource      = "source"
	KindInput       = "input"
	KindGroupInput  = "group_input"
	KindVariable    = "variable"
	KindTransform   = "transform"
	KindProcess     = "process"
	KindAggregator  = "aggregator"
	KindCombine     = "combine"
	KindSink        = "sink"
	KindOutput      = "output"
	KindGroupOutput = "group_output"
)

// NormalizeKind lowercases and trims a type tag, substituting generic for
// an empty tag.
func NormalizeKind(kind string) string {
	k := strings.ToLower(strings.TrimSpace(kind))
	if k == "" {
		return KindGeneric
	}
	return k
}

// FamilyOf maps a type tag to its family. Unknown tags belong to the
// generic family, which computes like a source.
func FamilyOf(kind string) KindFamily {
	switch NormalizeKind(kind) {
	case KindSource, KindInput, KindGroupInput:
		return FamilySource
	case KindVariable:
		return FamilyVariable
	case KindTransform, KindProcess:
		return FamilyTransform
	case KindAggregator, KindCombine:
		return FamilyAggregator
	case KindSink, KindOutput, KindGroupOutput:
		return FamilySink
	default:
		return FamilyGeneric
	}
}

// IsCollector reports whether nodes of this kind collect their inputs into
// text after evaluation. Collector inputs are reset at the start of every
// evaluation and post-processed at its end.
func IsCollector(kind string) bool {
	switch FamilyOf(kind) {
	case FamilySink, FamilyAggregator:
		return true
	default:
		return false
	}
}

// ContentIsValue reports whether a node's raw content may stand in for a
// missing output value during propagation. Transforms and sinks are
// excluded so that unevaluated expressions and scripts never leak
// downstream.
func ContentIsValue(kind string) bool {
	switch FamilyOf(kind) {
	case FamilyTransform, FamilySink:
		return false
	default:
		return true
	}
}

// Purity declares whether a node's output depends only on its inputs and
// content.
type Purity string

// Purity hints.
const (
	Pure   Purity = "pure"
	Impure Purity = "impure"
)

// ParsePurity maps "pure" (any case) to Pure and everything else to Impure.
func ParsePurity(s string) Purity {
	if strings.EqualFold(strings.TrimSpace(s), string(Pure)) {
		return Pure
	}
	return Impure
}

// scriptMarkers are the language tags that turn a sink into a scripted node.
var scriptMarkers = []string{"python", "starlark", "script"}

// IsScriptLanguage reports whether a node language tag marks its content
// as an executable snippet.
func IsScriptLanguage(language string) bool {
	l := strings.ToLower(language)
	for _, m := range scriptMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}
