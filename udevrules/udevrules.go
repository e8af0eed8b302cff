// Package udevrules implements the Udev Rule Interpreter: it compiles
// a directory of declarative rule files into a flat rule table with
// resolved label jumps, then evaluates that table against a port's
// kernel properties. Grounded in the rule-file convention of
// mm-kernel-device-generic-rules.c.
package udevrules

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ttymodem/mmcore/mmerr"
)

// knownPrefixes are the only file basenames the loader will read, in
// the order they are always applied: earlier-numbered files run first.
var knownPrefixes = []string{"77-mm-", "78-mm-", "79-mm-", "80-mm-"}

func hasKnownPrefix(name string) bool {
	for _, p := range knownPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Op is a match condition's comparison operator.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
)

// MatchCondition is one LHS op RHS test against a port's properties.
type MatchCondition struct {
	Param string
	Op    Op
	Value string
}

// ResultKind classifies a rule's single Result.
type ResultKind int

const (
	ResultSetProperty ResultKind = iota
	ResultLabel
	ResultGoto
)

// Result is a rule's action once all its MatchConditions pass.
type Result struct {
	Kind ResultKind
	// Name is the property name for SetProperty, the label text for
	// Label and (pre-resolution) Goto.
	Name string
	// Value is the property value; only meaningful for SetProperty.
	Value string
	// GotoIndex is the resolved absolute rule index; -1 until
	// resolveLabels has run, only meaningful for Goto.
	GotoIndex int
}

// Rule is one compiled line: a conjunction of MatchConditions plus one
// Result.
type Rule struct {
	Conditions []MatchCondition
	Result     Result
}

// RuleSet is the flat, jump-resolved rule table produced by Load.
type RuleSet struct {
	Rules []Rule
}

// Load reads every file in dir whose basename matches a known prefix,
// in lexicographic order, parses each into rules with file-local
// labels resolved to absolute indices, and concatenates them into one
// RuleSet. An empty resulting rule list is a fatal error.
func Load(dir string) (*RuleSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.Failed, "read rule directory", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !hasKnownPrefix(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, mmerr.New(mmerr.Failed, "no udev rule files matched the known prefixes")
	}

	var rules []Rule
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, mmerr.Wrap(mmerr.Failed, "read "+name, err)
		}
		fileRules, err := ParseRuleFile(string(data))
		if err != nil {
			return nil, mmerr.Wrap(mmerr.Failed, "parse "+name, err)
		}
		if err := resolveLabels(fileRules, len(rules)); err != nil {
			return nil, mmerr.Wrap(mmerr.Failed, name, err)
		}
		rules = append(rules, fileRules...)
	}
	return &RuleSet{Rules: rules}, nil
}

// ParseRuleFile parses one rule file's text into rules with Goto
// results left unresolved (GotoIndex == -1); the caller resolves
// labels with resolveLabels (or, for a single standalone file, by
// calling Load against a directory containing just that file).
func ParseRuleFile(data string) ([]Rule, error) {
	var rules []Rule
	for _, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items := strings.Split(line, ",")
		var conds []MatchCondition
		for _, it := range items[:len(items)-1] {
			cond, err := parseCondition(it)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
		res, err := parseResult(items[len(items)-1])
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{Conditions: conds, Result: res})
	}
	return rules, nil
}

func parseCondition(item string) (MatchCondition, error) {
	item = strings.TrimSpace(item)
	eqIdx := strings.Index(item, "==")
	neIdx := strings.Index(item, "!=")

	var opIdx int
	var op Op
	switch {
	case eqIdx >= 0 && (neIdx < 0 || eqIdx < neIdx):
		opIdx, op = eqIdx, OpEqual
	case neIdx >= 0:
		opIdx, op = neIdx, OpNotEqual
	default:
		return MatchCondition{}, mmerr.New(mmerr.Failed, "match condition must use == or !=: "+item)
	}

	lhs := strings.TrimSpace(item[:opIdx])
	rhs := unquoteRHS(item[opIdx+2:])
	if lhs == "" || rhs == "" {
		return MatchCondition{}, mmerr.New(mmerr.Failed, "empty LHS or RHS: "+item)
	}
	return MatchCondition{Param: lhs, Op: op, Value: rhs}, nil
}

func parseResult(item string) (Result, error) {
	item = strings.TrimSpace(item)
	if strings.Contains(item, "==") || strings.Contains(item, "!=") {
		return Result{}, mmerr.New(mmerr.Failed, "result must use =: "+item)
	}
	idx := strings.Index(item, "=")
	if idx < 0 {
		return Result{}, mmerr.New(mmerr.Failed, "result missing =: "+item)
	}
	lhs := strings.TrimSpace(item[:idx])
	rhs := unquoteRHS(item[idx+1:])
	if lhs == "" || rhs == "" {
		return Result{}, mmerr.New(mmerr.Failed, "empty LHS or RHS: "+item)
	}

	switch {
	case lhs == "LABEL":
		return Result{Kind: ResultLabel, Name: rhs}, nil
	case lhs == "GOTO":
		return Result{Kind: ResultGoto, Name: rhs, GotoIndex: -1}, nil
	case strings.HasPrefix(lhs, "ENV{") && strings.HasSuffix(lhs, "}"):
		return Result{Kind: ResultSetProperty, Name: lhs[len("ENV{") : len(lhs)-1], Value: rhs}, nil
	default:
		return Result{}, mmerr.New(mmerr.Failed, "unknown result LHS: "+lhs)
	}
}

func unquoteRHS(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// resolveLabels rewrites every Goto(label) in rules to Goto(index),
// where index is offset plus the position of the exactly-one matching
// later Label(label) in rules. Zero or more-than-one matches are
// fatal, per spec.md §4.6.
func resolveLabels(rules []Rule, offset int) error {
	for i := range rules {
		if rules[i].Result.Kind != ResultGoto {
			continue
		}
		label := rules[i].Result.Name
		found := -1
		matches := 0
		for j := i + 1; j < len(rules); j++ {
			if rules[j].Result.Kind == ResultLabel && rules[j].Result.Name == label {
				matches++
				found = j
			}
		}
		switch {
		case matches == 0:
			return mmerr.New(mmerr.Failed, "GOTO label not found: "+label)
		case matches > 1:
			return mmerr.New(mmerr.Failed, "GOTO label ambiguous: "+label)
		}
		rules[i].Result.GotoIndex = offset + found
	}
	return nil
}

// Evaluate walks the rule table from index 0, testing conditions
// against props and applying SetProperty/Label/Goto results per
// spec.md §4.6. Later SetProperty for the same name overrides earlier
// values.
func (rs *RuleSet) Evaluate(props map[string]string) map[string]string {
	out := make(map[string]string)
	i := 0
	for i < len(rs.Rules) {
		r := rs.Rules[i]
		if !matchAll(r.Conditions, props) {
			i++
			continue
		}
		switch r.Result.Kind {
		case ResultSetProperty:
			out[r.Result.Name] = r.Result.Value
			i++
		case ResultLabel:
			i++
		case ResultGoto:
			i = r.Result.GotoIndex
		}
	}
	return out
}

// Params returns the distinct parameter names referenced by any
// MatchCondition in the set, in first-seen order. A caller backing
// Evaluate with a live KernelDeviceAccessor queries exactly these
// names rather than guessing which properties the rule files care
// about.
func (rs *RuleSet) Params() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rs.Rules {
		for _, c := range r.Conditions {
			if !seen[c.Param] {
				seen[c.Param] = true
				names = append(names, c.Param)
			}
		}
	}
	return names
}

func matchAll(conds []MatchCondition, props map[string]string) bool {
	for _, c := range conds {
		eq := props[c.Param] == c.Value
		if (c.Op == OpEqual) != eq {
			return false
		}
	}
	return true
}
