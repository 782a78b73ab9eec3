package dynamics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"stdpengine/internal/blob"
	"stdpengine/internal/timing"
)

var (
	ErrRuleExists   = errors.New("timing rule already registered")
	ErrRuleNotFound = errors.New("timing rule not found")
)

// binder builds the engine for an already-decoded rule.
type binder func(env environment) (Dynamics, error)

// RuleReader decodes a rule's parameter block from the configuration blob.
type RuleReader func(c blob.Cursor) (binder, blob.Cursor, error)

var ruleRegistry = struct {
	mu sync.RWMutex
	m  map[string]RuleReader
}{
	m: make(map[string]RuleReader),
}

func init() {
	initializeBuiltInRules()
}

func initializeBuiltInRules() {
	MustRegisterRule(timing.NamePair, Bind[int32, int32](timing.ReadPair))
	MustRegisterRule(timing.NameNearestPair, Bind[timing.Empty, timing.Empty](timing.ReadNearestPair))
	MustRegisterRule(timing.NameVogels2011, Bind[int32, int32](timing.ReadVogels2011))
	MustRegisterRule(timing.NamePfisterTriplet, Bind[timing.TripletTrace, timing.TripletTrace](timing.ReadPfisterTriplet))
	MustRegisterRule(timing.NameRecurrent, Bind[timing.RecurrentPreTrace, timing.RecurrentPostTrace](timing.ReadRecurrent))
	MustRegisterRule(timing.NameErbp, Bind[int32, timing.Empty](timing.ReadErbp))
	MustRegisterRule(timing.NameTarget, Bind[int32, timing.Empty](timing.ReadTarget))
	MustRegisterRule(timing.NameRatePyramidal, Bind[int32, timing.Empty](timing.ReadRatePyramidal))
	MustRegisterRule(timing.NameDopaminePair, Bind[int32, timing.DopamineTrace](timing.ReadDopaminePair))
}

// Bind adapts a typed rule reader to the registry.
func Bind[Pre, Post any, R timing.Rule[Pre, Post]](read func(blob.Cursor) (R, blob.Cursor, error)) RuleReader {
	return func(c blob.Cursor) (binder, blob.Cursor, error) {
		rule, c, err := read(c)
		if err != nil {
			return nil, c, err
		}
		return func(env environment) (Dynamics, error) {
			e, err := newEngine[Pre, Post](rule, env)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, c, nil
	}
}

func RegisterRule(name string, reader RuleReader) error {
	if name == "" {
		return errors.New("timing rule name is required")
	}
	if reader == nil {
		return errors.New("timing rule reader is required")
	}
	name = timing.NormalizeRuleName(name)

	ruleRegistry.mu.Lock()
	defer ruleRegistry.mu.Unlock()
	if _, exists := ruleRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, name)
	}
	ruleRegistry.m[name] = reader
	return nil
}

func MustRegisterRule(name string, reader RuleReader) {
	if err := RegisterRule(name, reader); err != nil {
		panic(err)
	}
}

func lookupRule(name string) (RuleReader, error) {
	name = timing.NormalizeRuleName(name)
	ruleRegistry.mu.RLock()
	defer ruleRegistry.mu.RUnlock()
	reader, ok := ruleRegistry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}
	return reader, nil
}

// RegisteredRules lists registered rule names in sorted order.
func RegisteredRules() []string {
	ruleRegistry.mu.RLock()
	defer ruleRegistry.mu.RUnlock()
	names := make([]string, 0, len(ruleRegistry.m))
	for name := range ruleRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRulesForTests() {
	ruleRegistry.mu.Lock()
	ruleRegistry.m = make(map[string]RuleReader)
	ruleRegistry.mu.Unlock()
	initializeBuiltInRules()
}
