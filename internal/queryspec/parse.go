package queryspec

import (
	"fmt"
	"sort"
	"strings"
)

// AnySentinel is the filter value that omits the filter entirely.
const AnySentinel = "any"

// reservedKeys are map-form keys that are not field filters.
var reservedKeys = map[string]bool{
	"search":         true,
	"search_columns": true,
	"meta_query":     true,
	"aggregate":      true,
	"group_by":       true,
	"joins":          true,
	"sort":           true,
	"page":           true,
	"per_page":       true,
	"offset":         true,
	"fields":         true,
	"count":          true,
	"with_total":     true,
}

// filter operator suffixes, checked longest-first so "_not" never shadows
// a field genuinely named "*_not" that also carries a longer suffix.
var filterSuffixes = []string{"_query", "_before", "_after", "_min", "_max", "_not"}

// ParseMap converts the wire-shaped map form of a query into a typed Spec.
//
// This is the only place key-suffix interpretation happens. Field filter
// keys support the suffixes _not, _min, _max, _after, _before and _query;
// everything else in the map must be one of the reserved spec keys. The
// literal value "any" omits a filter entirely.
//
// Numeric range bounds (_min/_max) and datetime bounds (_after/_before) for
// the same base field merge into a single range clause. Returns a
// *ValidationError on any structural problem; ParseMap never consults the
// schema registry.
func ParseMap(m map[string]any) (Spec, error) {
	b := New()

	// Deterministic clause order regardless of map iteration.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	numRanges := make(map[string]*NumericRange)
	timeRanges := make(map[string]*TimeRange)

	for _, key := range keys {
		if reservedKeys[key] {
			continue
		}
		if err := parseFieldFilter(b, key, m[key], numRanges, timeRanges); err != nil {
			return Spec{}, err
		}
	}

	// Emit merged ranges in deterministic field order.
	for _, field := range sortedRangeFields(numRanges) {
		b.Where(*numRanges[field])
	}
	for _, field := range sortedTimeFields(timeRanges) {
		b.Where(*timeRanges[field])
	}

	if err := parseReserved(b, m); err != nil {
		return Spec{}, err
	}

	spec := b.Build()
	if err := Validate(spec); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func parseFieldFilter(b *Builder, key string, value any, numRanges map[string]*NumericRange, timeRanges map[string]*TimeRange) error {
	if s, ok := value.(string); ok && s == AnySentinel {
		return nil
	}

	for _, suffix := range filterSuffixes {
		if !strings.HasSuffix(key, suffix) || len(key) == len(suffix) {
			continue
		}
		field := key[:len(key)-len(suffix)]
		switch suffix {
		case "_not":
			if values, ok := valueList(value); ok {
				b.Where(NotIn{Field: field, Values: values})
			} else {
				b.Where(NotEquals{Field: field, Value: value})
			}
		case "_min":
			numRange(numRanges, field).Min = value
		case "_max":
			numRange(numRanges, field).Max = value
		case "_after":
			timeRange(timeRanges, field).After = value
		case "_before":
			timeRange(timeRanges, field).Before = value
		case "_query":
			return parseStructuredQuery(b, field, value)
		}
		return nil
	}

	if values, ok := valueList(value); ok {
		b.Where(In{Field: key, Values: values})
	} else {
		b.Where(Equals{Field: key, Value: value})
	}
	return nil
}

// parseStructuredQuery handles the "field_query" form: either a datetime
// range with an explicit inclusivity override,
//
//	{"after": ..., "before": ..., "inclusive": false}
//
// or calendar-component matching,
//
//	{"year": 2026, "month": 8}
func parseStructuredQuery(b *Builder, field string, value any) error {
	q, ok := value.(map[string]any)
	if !ok {
		return badSpec(field, "structured query must be a map, got %T", value)
	}

	if hasAny(q, "year", "month", "day") {
		if hasAny(q, "after", "before", "inclusive") {
			return badSpec(field, "structured query mixes calendar components with range bounds")
		}
		dm := DateMatch{Field: field}
		var err error
		if dm.Year, err = optInt(q, "year", field); err != nil {
			return err
		}
		if dm.Month, err = optInt(q, "month", field); err != nil {
			return err
		}
		if dm.Day, err = optInt(q, "day", field); err != nil {
			return err
		}
		b.Where(dm)
		return nil
	}

	tr := TimeRange{Field: field, After: q["after"], Before: q["before"]}
	if inc, present := q["inclusive"]; present {
		flag, ok := inc.(bool)
		if !ok {
			return badSpec(field, "inclusive must be a bool, got %T", inc)
		}
		tr.Strict = !flag
	}
	if tr.After == nil && tr.Before == nil {
		return badSpec(field, "structured query has no bounds or components")
	}
	b.Where(tr)
	return nil
}

func parseReserved(b *Builder, m map[string]any) error {
	if raw, ok := m["search"]; ok {
		term, ok := raw.(string)
		if !ok {
			return badSpec("search", "search term must be a string, got %T", raw)
		}
		columns, err := optStringList(m, "search_columns")
		if err != nil {
			return err
		}
		b.Search(term, columns...)
	}

	if raw, ok := m["meta_query"]; ok {
		mq, err := parseMetaClause(raw)
		if err != nil {
			return err
		}
		b.Meta(mq)
	}

	if raw, ok := m["sort"]; ok {
		if err := parseSort(b, raw); err != nil {
			return err
		}
	}

	if err := parsePagination(b, m); err != nil {
		return err
	}

	if raw, ok := m["fields"]; ok {
		if err := parseFields(b, raw); err != nil {
			return err
		}
	}

	if raw, ok := m["aggregate"]; ok {
		if err := parseAggregates(b, raw); err != nil {
			return err
		}
	}

	if raw, ok := m["group_by"]; ok {
		if err := parseGroupBy(b, raw); err != nil {
			return err
		}
	}

	if raw, ok := m["joins"]; ok {
		aliases, err := stringList(raw, "joins")
		if err != nil {
			return err
		}
		b.Join(aliases...)
	}

	if raw, ok := m["count"]; ok {
		flag, ok := raw.(bool)
		if !ok {
			return badSpec("count", "count must be a bool, got %T", raw)
		}
		if flag {
			b.CountOnly()
		}
	}

	if raw, ok := m["with_total"]; ok {
		flag, ok := raw.(bool)
		if !ok {
			return badSpec("with_total", "with_total must be a bool, got %T", raw)
		}
		if flag {
			b.WithTotal()
		}
	}

	return nil
}

// parseMetaClause parses a meta_query tree. Accepted shapes:
//
//	{"key": "color", "op": "=", "value": "red"}          compare node
//	{"relation": "OR", "clauses": [node, node, ...]}     group node
//	[node, node, ...]                                    implicit AND group
func parseMetaClause(raw any) (MetaClause, error) {
	switch v := raw.(type) {
	case []any:
		return parseMetaGroup(MetaAnd, v)
	case map[string]any:
		if rel, ok := v["relation"]; ok {
			relStr, ok := rel.(string)
			if !ok {
				return nil, badSpec("meta_query", "relation must be a string, got %T", rel)
			}
			clauses, ok := v["clauses"].([]any)
			if !ok {
				return nil, badSpec("meta_query", "group node requires a clauses list")
			}
			return parseMetaGroup(MetaRelation(strings.ToUpper(relStr)), clauses)
		}

		key, _ := v["key"].(string)
		if key == "" {
			return nil, badSpec("meta_query", "compare node requires a key")
		}
		op := MetaEq
		if rawOp, ok := v["op"]; ok {
			opStr, ok := rawOp.(string)
			if !ok {
				return nil, badSpec(key, "meta op must be a string, got %T", rawOp)
			}
			op = MetaOp(strings.ToUpper(opStr))
		}
		return MetaCompare{Key: key, Op: op, Value: v["value"]}, nil
	default:
		return nil, badSpec("meta_query", "meta_query must be a map or list, got %T", raw)
	}
}

func parseMetaGroup(rel MetaRelation, clauses []any) (MetaClause, error) {
	nodes := make([]MetaClause, 0, len(clauses))
	for _, c := range clauses {
		node, err := parseMetaClause(c)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return MetaGroup{Relation: rel, Nodes: nodes}, nil
}

// parseSort accepts "field", "-field" (descending) or a list of either.
func parseSort(b *Builder, raw any) error {
	entries, err := stringList(raw, "sort")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e == "" || e == "-" {
			return badSpec("sort", "empty sort entry")
		}
		if strings.HasPrefix(e, "-") {
			b.SortBy(e[1:], true)
		} else {
			b.SortBy(e, false)
		}
	}
	return nil
}

func parsePagination(b *Builder, m map[string]any) error {
	page, err := optIntKey(m, "page")
	if err != nil {
		return err
	}
	perPage, err := optIntKey(m, "per_page")
	if err != nil {
		return err
	}
	offset, err := optIntKey(m, "offset")
	if err != nil {
		return err
	}

	// Pass values through even when the combination is incomplete or
	// negative; Validate owns rejecting them, same as for built specs.
	if page != 0 || perPage != 0 {
		if page == 0 {
			page = 1
		}
		b.Paginate(page, perPage)
	}
	if offset != 0 {
		b.Offset(offset)
	}
	return nil
}

// parseFields accepts "all", a single field name (scalar mode) or a list
// of names (tuple mode). A one-element list is still tuple mode; only a
// bare string selects scalar output.
func parseFields(b *Builder, raw any) error {
	switch v := raw.(type) {
	case string:
		if v == "all" {
			b.SelectAll()
			return nil
		}
		b.spec.Fields = Fields{Mode: FieldsScalar, Names: []string{v}}
		return nil
	case []any:
		names, err := stringList(v, "fields")
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return badSpec("fields", "empty field list")
		}
		b.spec.Fields = Fields{Mode: FieldsList, Names: names}
		return nil
	case []string:
		if len(v) == 0 {
			return badSpec("fields", "empty field list")
		}
		b.spec.Fields = Fields{Mode: FieldsList, Names: v}
		return nil
	default:
		return badSpec("fields", "fields must be \"all\", a name or a list, got %T", raw)
	}
}

// parseAggregates accepts a map of entries. Each entry is either
//
//	field: "sum"                              simple form
//	alias: {"function": ..., "field": ...,    expression or CASE form
//	        "expression"/"case": ..., "math": ...}
//
// Entries are emitted in sorted key order for deterministic SQL.
func parseAggregates(b *Builder, raw any) error {
	m, ok := raw.(map[string]any)
	if !ok {
		return badSpec("aggregate", "aggregate must be a map, got %T", raw)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			b.Aggregate(SimpleAggregate{Field: key, Func: AggregateFunc(strings.ToUpper(v))})
		case map[string]any:
			agg, err := parseAggregateEntry(key, v)
			if err != nil {
				return err
			}
			b.Aggregate(agg)
		default:
			return badSpec(key, "aggregate entry must be a function name or a map, got %T", m[key])
		}
	}
	return nil
}

func parseAggregateEntry(key string, entry map[string]any) (AggregateClause, error) {
	fnRaw, ok := entry["function"].(string)
	if !ok {
		return nil, badSpec(key, "aggregate entry requires a function")
	}
	fn := AggregateFunc(strings.ToUpper(fnRaw))

	field, _ := entry["field"].(string)
	alias, _ := entry["alias"].(string)
	if alias == "" && field != "" {
		// The entry key names the output when it isn't the field itself.
		alias = key
	}
	if field == "" {
		field = key
	}

	if rawCase, ok := entry["case"]; ok {
		// The CASE form's field lives inside the case map, so the entry key
		// always names the output.
		if alias == "" {
			alias = key
		}
		return parseCaseAggregate(key, fn, field, alias, rawCase, entry["math"])
	}

	if expr, ok := entry["expression"].(string); ok {
		return ExprAggregate{Field: field, Func: fn, Expr: expr, Alias: alias}, nil
	}

	return SimpleAggregate{Field: field, Func: fn, Alias: alias}, nil
}

// parseCaseAggregate parses the CASE form:
//
//	{"case": {"field": "status", "when": {"paid": 1}, "else": 0},
//	 "function": "sum", "math": {"op": "/", "value": 100}}
//
// Branch values are literals unless prefixed with "$", which marks a field
// reference ("$amount" resolves to the amount column).
func parseCaseAggregate(key string, fn AggregateFunc, field, alias string, rawCase, rawMath any) (AggregateClause, error) {
	caseMap, ok := rawCase.(map[string]any)
	if !ok {
		return nil, badSpec(key, "case must be a map, got %T", rawCase)
	}

	if f, ok := caseMap["field"].(string); ok && f != "" {
		field = f
	}

	whenMap, ok := caseMap["when"].(map[string]any)
	if !ok || len(whenMap) == 0 {
		return nil, badSpec(key, "case requires a non-empty when map")
	}

	matches := make([]string, 0, len(whenMap))
	for match := range whenMap {
		matches = append(matches, match)
	}
	sort.Strings(matches)

	branches := make([]CaseBranch, 0, len(matches))
	for _, match := range matches {
		branches = append(branches, CaseBranch{
			Match: match,
			Then:  caseValue(whenMap[match]),
		})
	}

	agg := CaseAggregate{Field: field, Func: fn, When: branches, Alias: alias}

	if rawElse, ok := caseMap["else"]; ok {
		v := caseValue(rawElse)
		agg.Else = &v
	}

	if rawMath != nil {
		mathMap, ok := rawMath.(map[string]any)
		if !ok {
			return nil, badSpec(key, "math must be a map, got %T", rawMath)
		}
		op, _ := mathMap["op"].(string)
		operand, err := toFloat(mathMap["value"])
		if err != nil {
			return nil, badSpec(key, "math value must be numeric")
		}
		agg.Math = &MathOp{Op: op, Operand: operand}
	}

	return agg, nil
}

func caseValue(raw any) CaseValue {
	if s, ok := raw.(string); ok && strings.HasPrefix(s, "$") {
		return CaseValue{FieldRef: s[1:]}
	}
	return CaseValue{Literal: raw}
}

// parseGroupBy accepts a single field name, a list of names (with optional
// "field:bucket" suffix) or a list of {"field", "bucket"} maps.
func parseGroupBy(b *Builder, raw any) error {
	var entries []any
	switch v := raw.(type) {
	case string:
		entries = []any{v}
	case []any:
		entries = v
	default:
		return badSpec("group_by", "group_by must be a name or a list, got %T", raw)
	}

	for _, e := range entries {
		switch v := e.(type) {
		case string:
			field, bucket := v, BucketNone
			if i := strings.IndexByte(v, ':'); i >= 0 {
				field, bucket = v[:i], Bucket(v[i+1:])
			}
			b.GroupByBucket(field, bucket)
		case map[string]any:
			field, _ := v["field"].(string)
			bucket, _ := v["bucket"].(string)
			if field == "" {
				return badSpec("group_by", "group_by entry requires a field")
			}
			b.GroupByBucket(field, Bucket(bucket))
		default:
			return badSpec("group_by", "group_by entry must be a name or a map, got %T", e)
		}
	}
	return nil
}

// valueList reports whether v is a value list ([]any or []string).
func valueList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func stringList(raw any, key string) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, badSpec(key, "list entry must be a string, got %T", e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, badSpec(key, "must be a string or list of strings, got %T", raw)
	}
}

func optStringList(m map[string]any, key string) ([]string, error) {
	raw, ok := m[key]
	if !ok {
		return nil, nil
	}
	return stringList(raw, key)
}

func optIntKey(m map[string]any, key string) (int, error) {
	raw, ok := m[key]
	if !ok {
		return 0, nil
	}
	n, err := toInt(raw)
	if err != nil {
		return 0, badSpec(key, "must be an integer, got %T", raw)
	}
	return n, nil
}

func optInt(m map[string]any, key, field string) (int, error) {
	raw, ok := m[key]
	if !ok {
		return 0, nil
	}
	n, err := toInt(raw)
	if err != nil {
		return 0, badSpec(field, "%s must be an integer, got %T", key, raw)
	}
	return n, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}

func numRange(m map[string]*NumericRange, field string) *NumericRange {
	if r, ok := m[field]; ok {
		return r
	}
	r := &NumericRange{Field: field}
	m[field] = r
	return r
}

func timeRange(m map[string]*TimeRange, field string) *TimeRange {
	if r, ok := m[field]; ok {
		return r
	}
	r := &TimeRange{Field: field}
	m[field] = r
	return r
}

func sortedRangeFields(m map[string]*NumericRange) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func sortedTimeFields(m map[string]*TimeRange) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
