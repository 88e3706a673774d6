package sandbox

import (
	"regexp"
	"strconv"

	"github.com/runforge/execengine/function"
)

// Policy is the subset of function.SandboxConfig CheckPolicy needs to decide
// which static tripwires apply to a given run.
type Policy struct {
	AllowedGlobals []string
	MemoryLimitMb  int
	CPULimitMs     int
}

// sensitiveGlobals lists identifiers that, if referenced by source but not
// present in SandboxConfig.AllowedGlobals, fail fast with a ReferenceError
// rather than being silently undefined inside the isolate.
var sensitiveGlobals = []string{"setTimeout", "setInterval", "fetch", "process", "require"}

var globalRefPattern = map[string]*regexp.Regexp{}

func init() {
	for _, g := range sensitiveGlobals {
		globalRefPattern[g] = regexp.MustCompile(`\b` + g + `\s*\(`)
	}
}

var (
	oversizedAllocPattern = regexp.MustCompile(`new\s+Array\s*\(\s*(\d+)\s*\)`)
	infiniteLoopPattern   = regexp.MustCompile(`while\s*\(\s*true\s*\)|for\s*\(\s*;;\s*\)`)
)

const maxArrayAllocLength = 50_000_000

// CheckPolicy runs the static, pre-execution tripwires:
// references to a sensitive global absent from the allowlist fail with
// ReferenceError. The oversized-allocation and infinite-loop literal checks
// only run when the caller actually configured the corresponding limit
// (MemoryLimitMb/CPULimitMs > 0); otherwise there is nothing for them to
// enforce ahead of the isolate's own runtime enforcement, so source that
// would trip them is left to run and hit the real per-isolate timeout or
// memory ceiling instead.
func CheckPolicy(source string, policy Policy) error {
	allowed := make(map[string]bool, len(policy.AllowedGlobals))
	for _, g := range policy.AllowedGlobals {
		allowed[g] = true
	}

	for _, g := range sensitiveGlobals {
		if allowed[g] {
			continue
		}
		if globalRefPattern[g].MatchString(source) {
			return function.New(function.ErrReference, "%s is not defined", g)
		}
	}

	if policy.MemoryLimitMb > 0 {
		if m := oversizedAllocPattern.FindStringSubmatch(source); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxArrayAllocLength {
				return function.New(function.ErrMemoryLimit, "allocation of %d elements exceeds the sandbox memory limit", n)
			}
		}
	}

	if policy.CPULimitMs > 0 {
		if infiniteLoopPattern.MatchString(source) {
			return function.New(function.ErrCPULimit, "source contains an unconditional infinite loop")
		}
	}

	return nil
}
