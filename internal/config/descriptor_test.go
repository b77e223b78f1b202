package config

import (
	"errors"
	"reflect"
	"testing"
)

func TestLoadDescriptor_Formats(t *testing.T) {
	dir := t.TempDir()
	want := Descriptor{Name: "web", Program: "python3", Args: []string{"-m", "http.server", "8080"}}
	files := map[string]string{
		"web.json": `{"name": "web", "program": "python3", "args": ["-m", "http.server", "8080"]}`,
		"web.yaml": "name: web\nprogram: python3\nargs: [\"-m\", \"http.server\", \"8080\"]\n",
		"web.toml": "name = \"web\"\nprogram = \"python3\"\nargs = [\"-m\", \"http.server\", \"8080\"]\n",
		"web.conf": `{"name": "web", "program": "python3", "args": ["-m", "http.server", "8080"]}`,
	}
	for name, content := range files {
		p := writeFile(t, dir, name, content)
		got, err := LoadDescriptor(p)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %+v want %+v", name, got, want)
		}
	}
}

func TestLoadDescriptor_Errors(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"broken.json":    `{"name": "web", "program": `,
		"noprogram.json": `{"name": "web", "args": []}`,
		"missing.json":   "",
	}
	for name, content := range cases {
		p := dir + "/" + name
		if content != "" {
			p = writeFile(t, dir, name, content)
		}
		_, err := LoadDescriptor(p)
		var pErr *ParseError
		if !errors.As(err, &pErr) {
			t.Fatalf("%s: expected ParseError, got %v", name, err)
		}
	}
}
