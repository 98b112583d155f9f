package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// AllowedImports is the full set of packages a generator program may import.
// The prompt builder advertises the same list, so a well-behaved generation
// service never produces a program that fails this check.
var AllowedImports = []string{
	"bytes",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"math/rand",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

var allowedImportSet = func() map[string]bool {
	set := make(map[string]bool, len(AllowedImports))
	for _, path := range AllowedImports {
		set[path] = true
	}
	return set
}()

// forbiddenIdents are identifiers that signal capability escapes even when
// the import check passes. Matching is conservative: a local variable that
// happens to share a name is rejected too.
var forbiddenIdents = map[string]string{
	"unsafe":  "unsafe memory access",
	"syscall": "system calls",
	"reflect": "reflection",
	"os":      "process and file access",
	"exec":    "subprocess execution",
	"net":     "network access",
	"cgo":     "native code",
	"plugin":  "plugin loading",
}

// CheckGoSource validates program source before interpretation: it must
// parse as package main, stay under maxBytes, import only AllowedImports,
// avoid forbidden identifiers, and contain no absolute or parent-directory
// path literals outside scratchPrefix.
func CheckGoSource(source string, maxBytes int, scratchPrefix string) error {
	if strings.TrimSpace(source) == "" {
		return newError(FailureViolation, "program source is empty", nil)
	}
	if maxBytes > 0 && len(source) > maxBytes {
		return newError(FailureViolation,
			fmt.Sprintf("program source is %d bytes, limit is %d", len(source), maxBytes), nil)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "program.go", source, 0)
	if err != nil {
		return newError(FailureViolation, "program source does not parse", err)
	}
	if file.Name.Name != "main" {
		return newError(FailureViolation,
			fmt.Sprintf("program must declare package main, got %q", file.Name.Name), nil)
	}

	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || !allowedImportSet[path] {
			return newError(FailureViolation,
				fmt.Sprintf("import %s is not allowed (allowed: %s)",
					imp.Path.Value, strings.Join(AllowedImports, ", ")), nil)
		}
	}

	var violation error
	ast.Inspect(file, func(n ast.Node) bool {
		if violation != nil {
			return false
		}
		switch node := n.(type) {
		case *ast.Ident:
			if capability, bad := forbiddenIdents[node.Name]; bad {
				violation = newError(FailureViolation,
					fmt.Sprintf("identifier %q is not allowed (%s)", node.Name, capability), nil)
				return false
			}
		case *ast.BasicLit:
			if node.Kind != token.STRING {
				return true
			}
			lit, err := strconv.Unquote(node.Value)
			if err != nil {
				return true
			}
			if pathEscapes(lit, scratchPrefix) {
				violation = newError(FailureViolation,
					fmt.Sprintf("path literal %q is not allowed", lit), nil)
				return false
			}
		}
		return true
	})
	if violation != nil {
		return violation
	}

	return nil
}

// pathEscapes reports whether a string literal names a filesystem location
// outside the scratch directory.
func pathEscapes(lit, scratchPrefix string) bool {
	if strings.Contains(lit, "../") || strings.Contains(lit, `..\`) {
		return true
	}
	if !strings.HasPrefix(lit, "/") {
		return false
	}
	return scratchPrefix == "" || !strings.HasPrefix(lit, scratchPrefix)
}

const wasmPageBytes = 65536

// wasmMagic is the module preamble: "\0asm" followed by version 1.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// CheckWasmModule validates a decoded module before instantiation.
func CheckWasmModule(module []byte, maxBytes int) error {
	if len(module) < len(wasmMagic) {
		return newError(FailureViolation, "module is too short to be WebAssembly", nil)
	}
	if maxBytes > 0 && len(module) > maxBytes {
		return newError(FailureViolation,
			fmt.Sprintf("module is %d bytes, limit is %d", len(module), maxBytes), nil)
	}
	for i, b := range wasmMagic {
		if module[i] != b {
			return newError(FailureViolation, "module does not start with the WebAssembly preamble", nil)
		}
	}
	return nil
}
