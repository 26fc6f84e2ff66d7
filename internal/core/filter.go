// Package core provides filtering, sorting, and lookup over notification
// history entries.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Newer than
	FilterOpLess      FilterOp = "<"  // Older than
	FilterOpGreaterEq FilterOp = ">=" // Newer than or equal
	FilterOpLessEq    FilterOp = "<=" // Older than or equal
)

// FilterCondition is a single field comparison.
type FilterCondition struct {
	Field    string   // source, title, message, type, reason, dismissible, timestamp
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	regex   *regexp.Regexp
	boolVal bool
	cutoff  time.Time
}

// FilterExpr is a list of conditions that must all match.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies simple filtering criteria.
type FilterOptions struct {
	Since  time.Duration // Only entries newer than Now-Since (0 = all)
	Source string        // Exact match on source
	Type   model.Type    // Exact match on type ("" = any)
	Limit  int           // Maximum results (0 = unlimited)
	Now    time.Time     // Reference time for Since (zero = time.Now())
}

// Filter returns the entries matching opts, in input order.
func Filter(notifications []model.Notification, opts FilterOptions) []model.Notification {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-opts.Since)

	result := make([]model.Notification, 0, len(notifications))
	for _, n := range notifications {
		if opts.Since > 0 && entryTime(n).Before(cutoff) {
			continue
		}
		if opts.Source != "" && n.Source != opts.Source {
			continue
		}
		if opts.Type != "" && n.Type != opts.Type {
			continue
		}
		result = append(result, n)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// ParseDuration parses a duration with day and week suffixes in addition to
// the time.ParseDuration forms: 48h, 7d, 1w. "0" and "" mean no limit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}

	if days, found := strings.CutSuffix(s, "d"); found {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	if weeks, found := strings.CutSuffix(s, "w"); found {
		n, err := strconv.Atoi(weeks)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// ParseFilter parses a comma-separated list of conditions such as
// "source=build,title~failed,timestamp>1h".
//
// Fields: source, title, message, type, reason, dismissible, timestamp.
// Operators: = != ~ (contains) ~= (regex); timestamp takes > < >= <= with a
// relative duration.
func ParseFilter(expr string) (*FilterExpr, error) {
	return ParseFilterAt(expr, time.Now())
}

// ParseFilterAt is ParseFilter with relative timestamps anchored at now.
func ParseFilterAt(expr string, now time.Time) (*FilterExpr, error) {
	filter := &FilterExpr{Conditions: make([]FilterCondition, 0)}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := parseCondition(part, now)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}
	return filter, nil
}

func parseCondition(s string, now time.Time) (FilterCondition, error) {
	// Longest operators first so "!=" is not read as "=".
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx <= 0 {
			continue
		}
		cond := FilterCondition{
			Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
			Operator: op,
			Value:    strings.TrimSpace(s[idx+len(op):]),
		}
		if err := cond.init(now); err != nil {
			return FilterCondition{}, err
		}
		return cond, nil
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

func (c *FilterCondition) init(now time.Time) error {
	switch c.Field {
	case "source", "app":
		c.Field = "source"
	case "title", "summary":
		c.Field = "title"
	case "message", "body":
		c.Field = "message"
	case "reason":
	case "type":
		if c.Operator == FilterOpEqual || c.Operator == FilterOpNotEqual {
			t, err := model.ParseType(c.Value)
			if err != nil {
				return err
			}
			c.Value = string(t)
		}
	case "dismissible":
		c.boolVal = parseBool(c.Value)
		if c.Operator != FilterOpEqual && c.Operator != FilterOpNotEqual {
			return fmt.Errorf("dismissible only supports = and !=")
		}
		return nil
	case "timestamp", "time", "ts":
		c.Field = "timestamp"
		d, err := ParseDuration(c.Value)
		if err != nil {
			return fmt.Errorf("invalid timestamp value: %w", err)
		}
		c.cutoff = now.Add(-d)
		return nil
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "y", "t":
		return true
	default:
		return false
	}
}

// Match reports whether every condition matches n.
func (f *FilterExpr) Match(n model.Notification) bool {
	for i := range f.Conditions {
		if !f.Conditions[i].Match(n) {
			return false
		}
	}
	return true
}

// Match reports whether n satisfies the condition.
func (c *FilterCondition) Match(n model.Notification) bool {
	switch c.Field {
	case "source":
		return c.matchString(n.Source)
	case "title":
		return c.matchString(n.Title)
	case "message":
		return c.matchString(n.Message)
	case "type":
		return c.matchString(string(n.Type))
	case "reason":
		return c.matchString(n.DismissReason)
	case "dismissible":
		if c.Operator == FilterOpNotEqual {
			return n.Dismissible != c.boolVal
		}
		return n.Dismissible == c.boolVal
	case "timestamp":
		return c.matchTime(entryTime(n))
	default:
		return false
	}
}

func (c *FilterCondition) matchString(v string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return v == c.Value
	case FilterOpNotEqual:
		return v != c.Value
	case FilterOpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.Value))
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(v)
	default:
		return false
	}
}

func (c *FilterCondition) matchTime(v time.Time) bool {
	switch c.Operator {
	case FilterOpGreater:
		return v.After(c.cutoff)
	case FilterOpLess:
		return v.Before(c.cutoff)
	case FilterOpGreaterEq:
		return !v.Before(c.cutoff)
	case FilterOpLessEq:
		return !v.After(c.cutoff)
	default:
		return false
	}
}

// FilterWithExpr returns the entries matching expr.
func FilterWithExpr(notifications []model.Notification, expr *FilterExpr) []model.Notification {
	if expr == nil || len(expr.Conditions) == 0 {
		return notifications
	}
	result := make([]model.Notification, 0, len(notifications))
	for _, n := range notifications {
		if expr.Match(n) {
			result = append(result, n)
		}
	}
	return result
}

// entryTime is the dismissal time, or the arrival time when unset.
func entryTime(n model.Notification) time.Time {
	if !n.DismissedAt.IsZero() {
		return n.DismissedAt
	}
	return n.Timestamp
}
