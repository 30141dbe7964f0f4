package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// legacyTable holds the line patterns for one platform's XCTest output,
// plus the name builders that normalize matches to the uniform
// "<target>/<class.function>" (Darwin) or "<class>/<function>"
// (non-Darwin) lookup keys.
type legacyTable struct {
	started      *regexp.Regexp
	passed       *regexp.Regexp
	failed       *regexp.Regexp
	errorLine    *regexp.Regexp
	skipped      *regexp.Regexp
	suiteStarted *regexp.Regexp
	suitePassed  *regexp.Regexp
	suiteFailed  *regexp.Regexp

	testName   func(m []string) string
	errorParts func(m []string) (name, file string, line int, message string)
}

// Darwin frames test case lines in Objective-C selector style:
//
//	Test Case '-[TargetName.ClassName testFunction]' started.
//	Test Case '-[TargetName.ClassName testFunction]' passed (0.001 seconds).
var darwinTable = legacyTable{
	started:      regexp.MustCompile(`Test Case '-\[(\S+) (.*)\]' started`),
	passed:       regexp.MustCompile(`Test Case '-\[(\S+) (.*)\]' passed \((\d+\.\d+) seconds\)`),
	failed:       regexp.MustCompile(`Test Case '-\[(\S+) (.*)\]' failed \((\d+\.\d+) seconds\)`),
	errorLine:    regexp.MustCompile(`(.+):(\d+): error: -\[(\S+) (.*)\] : (.*)$`),
	skipped:      regexp.MustCompile(`Test Case '-\[(\S+) (.*)\]' skipped`),
	suiteStarted: regexp.MustCompile(`Test Suite '(.*)' started`),
	suitePassed:  regexp.MustCompile(`Test Suite '(.*)' passed`),
	suiteFailed:  regexp.MustCompile(`Test Suite '(.*)' failed`),

	testName: func(m []string) string {
		return darwinName(m[1], m[2])
	},
	errorParts: func(m []string) (string, string, int, string) {
		line, _ := strconv.Atoi(m[2])
		return darwinName(m[3], m[4]), m[1], line, m[5]
	},
}

// darwinName joins "<Target>.<Class>" and a function into
// "<Target>/<Class>.<function>".
func darwinName(targetClass, function string) string {
	target, class, found := strings.Cut(targetClass, ".")
	if !found {
		return targetClass + "/" + function
	}
	return target + "/" + class + "." + function
}

// Non-Darwin runners frame test case lines without a target name:
//
//	Test Case 'ClassName.testFunction' started.
//
// The target can only be inferred from the source path on error lines,
// which is why LookupTest takes a file hint.
var nonDarwinTable = legacyTable{
	started:      regexp.MustCompile(`Test Case '(.*)\.(.*)' started`),
	passed:       regexp.MustCompile(`Test Case '(.*)\.(.*)' passed \((\d+\.\d+) seconds\)`),
	failed:       regexp.MustCompile(`Test Case '(.*)\.(.*)' failed \((\d+\.\d+) seconds\)`),
	errorLine:    regexp.MustCompile(`(.+):(\d+): error: (.*)\.(.*) : (.*)$`),
	skipped:      regexp.MustCompile(`Test Case '(.*)\.(.*)' skipped`),
	suiteStarted: regexp.MustCompile(`Test Suite '(.*)' started`),
	suitePassed:  regexp.MustCompile(`Test Suite '(.*)' passed`),
	suiteFailed:  regexp.MustCompile(`Test Suite '(.*)' failed`),

	testName: func(m []string) string {
		return m[1] + "/" + m[2]
	},
	errorParts: func(m []string) (string, string, int, string) {
		line, _ := strconv.Atoi(m[2])
		return m[3] + "/" + m[4], m[1], line, m[5]
	},
}
