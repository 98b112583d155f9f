package sandbox

import (
	"strings"
	"testing"
)

const cleanProgram = `package main

import (
	"encoding/json"
	"strconv"
)

func Generate(metadataJSON string, targetRows int) (string, error) {
	values := make([]any, targetRows)
	for i := 0; i < targetRows; i++ {
		values[i] = "v" + strconv.Itoa(i)
	}
	out := map[string]any{"columns": []any{map[string]any{"name": "c", "values": values}}}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func main() {}
`

func TestCheckGoSource(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantError string
	}{
		{"clean program", cleanProgram, ""},
		{"empty source", "   \n", "source is empty"},
		{"not parseable", "package main\n\nfunc Generate(", "does not parse"},
		{"wrong package", "package tools\n\nfunc Generate(m string, n int) (string, error) { return \"\", nil }", "package main"},
		{
			"disallowed import",
			"package main\n\nimport \"os\"\n\nfunc Generate(m string, n int) (string, error) { return os.Hostname() }\n\nfunc main() {}",
			"import \"os\" is not allowed",
		},
		{
			"disallowed nested import",
			"package main\n\nimport \"net/http\"\n\nvar c = http.DefaultClient\n\nfunc main() {}",
			"import \"net/http\" is not allowed",
		},
		{
			"forbidden identifier",
			"package main\n\nfunc Generate(m string, n int) (string, error) {\n\tvar syscall int\n\t_ = syscall\n\treturn \"\", nil\n}\n\nfunc main() {}",
			"identifier \"syscall\" is not allowed",
		},
		{
			"absolute path literal",
			"package main\n\nconst target = \"/etc/passwd\"\n\nfunc main() {}",
			"path literal \"/etc/passwd\" is not allowed",
		},
		{
			"parent traversal literal",
			"package main\n\nconst target = \"../secrets\"\n\nfunc main() {}",
			"path literal \"../secrets\" is not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckGoSource(tt.source, 262144, "")
			if tt.wantError == "" {
				if err != nil {
					t.Fatalf("CheckGoSource() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("CheckGoSource() = nil, want error containing %q", tt.wantError)
			}
			if !IsViolation(err) {
				t.Errorf("CheckGoSource() error is not a violation: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("CheckGoSource() = %v, want error containing %q", err, tt.wantError)
			}
		})
	}
}

func TestCheckGoSource_SizeCap(t *testing.T) {
	source := cleanProgram + "\n// " + strings.Repeat("x", 512)
	if err := CheckGoSource(source, 128, ""); err == nil || !IsViolation(err) {
		t.Fatalf("CheckGoSource() = %v, want size violation", err)
	}
	if err := CheckGoSource(source, 0, ""); err != nil {
		t.Fatalf("CheckGoSource() with no cap = %v, want nil", err)
	}
}

func TestCheckGoSource_ScratchPrefixAllowed(t *testing.T) {
	allowed := "package main\n\nconst work = \"/tmp/scratch/exec-1/out.json\"\n\nfunc main() {}"
	if err := CheckGoSource(allowed, 262144, "/tmp/scratch/exec-1"); err != nil {
		t.Fatalf("CheckGoSource() = %v, want nil for scratch-prefixed path", err)
	}
	if err := CheckGoSource(allowed, 262144, "/tmp/other"); err == nil {
		t.Fatal("CheckGoSource() = nil, want violation for path outside scratch")
	}
}

func TestCheckWasmModule(t *testing.T) {
	valid := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x02}

	tests := []struct {
		name    string
		module  []byte
		max     int
		wantErr bool
	}{
		{"valid preamble", valid, 0, false},
		{"too short", []byte{0x00, 0x61}, 0, true},
		{"wrong magic", []byte("notwasm!"), 0, true},
		{"text masquerading", []byte("package main ..."), 0, true},
		{"over size cap", valid, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWasmModule(tt.module, tt.max)
			if tt.wantErr {
				if err == nil || !IsViolation(err) {
					t.Fatalf("CheckWasmModule() = %v, want violation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckWasmModule() = %v, want nil", err)
			}
		})
	}
}
