package remote

// Predicate is a filter expression for list operations, in the data API's
// nested-map form: {"name": {"eq": "..."}} with "and"/"or" combinators.
type Predicate map[string]interface{}

// Eq matches records whose field equals value.
func Eq(field string, value interface{}) Predicate {
	return Predicate{field: map[string]interface{}{"eq": value}}
}

// And combines predicates conjunctively.
func And(preds ...Predicate) Predicate {
	parts := make([]interface{}, len(preds))
	for i, p := range preds {
		parts[i] = p
	}
	return Predicate{"and": parts}
}

// Or combines predicates disjunctively.
func Or(preds ...Predicate) Predicate {
	parts := make([]interface{}, len(preds))
	for i, p := range preds {
		parts[i] = p
	}
	return Predicate{"or": parts}
}

// Page selects a window of a list result. A zero Page means the API default.
type Page struct {
	Limit     int
	NextToken string
}

func (p Page) variables(vars map[string]interface{}) {
	if p.Limit > 0 {
		vars["limit"] = p.Limit
	}
	if p.NextToken != "" {
		vars["nextToken"] = p.NextToken
	}
}
