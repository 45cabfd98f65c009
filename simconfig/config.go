// Package simconfig parses the command-line flags that shape a simulated
// PLC at startup: which controller family it impersonates, its routing
// path, and the tag table it serves (spec.md §6).
package simconfig

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"warsim/plcsession"
	"warsim/tagstore"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// Config holds the parsed, validated startup configuration.
type Config struct {
	Version bool // --version was given; caller should print the version and exit

	Kind    plcsession.Kind
	Path    []byte // present only for ControlLogix
	Listen  string

	// DebugEnabled is whether --debug was given at all. DebugFilter is the
	// protocol filter passed to logging.DebugLogger.SetFilter, empty
	// meaning "log everything".
	DebugEnabled bool
	DebugFilter  string

	TagFile string
}

// tagFlags collects repeated --tag=name:type[dims] values. It implements
// flag.Value so the flag package can accumulate more than one occurrence.
type tagFlags []string

func (f *tagFlags) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *tagFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// preprocessDebugFlag injects an empty value after a bare --debug/-debug so
// the standard flag package (which otherwise swallows the following token
// unconditionally as the flag's value) doesn't eat the next real flag.
// Mirrors the teacher gateway's preprocessLogDebugFlag for --log-debug.
func preprocessDebugFlag(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for i := 0; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--debug" || a == "-debug" {
			if i+1 >= len(args) || (len(args[i+1]) > 0 && args[i+1][0] == '-') {
				out = append(out, "")
			}
		}
	}
	return out
}

// Parse parses command-line flags from args using its own FlagSet and
// returns the validated configuration plus the tag store declared by
// --tag and --tagfile flags. usageName is used as the FlagSet's name for
// error/usage output.
func Parse(usageName string, args []string) (*Config, *tagstore.Store, error) {
	fs := newFlagSet(usageName)

	versionFlag := fs.Bool("version", false, "show version and exit")
	plcFlag := fs.String("plc", "", "PLC family to impersonate: ControlLogix or Micro800 (required)")
	pathFlag := fs.String("path", "", "routing path as two comma-separated integers, required for --plc=ControlLogix")
	listenFlag := fs.String("listen", "0.0.0.0:44818", "address to listen on")
	debugFlag := fs.String("debug", "", "enable debug logging; optionally a comma-separated protocol filter (eip,cpf,cipsvc,dispatch)")
	tagFileFlag := fs.String("tagfile", "", "path to a YAML file declaring additional tags in bulk")
	var tags tagFlags
	fs.Var(&tags, "tag", "declare a tag as name:TYPE[dims] (repeatable), e.g. --tag=Big:DINT[2000]")

	if err := fs.Parse(preprocessDebugFlag(args)); err != nil {
		return nil, nil, err
	}

	if *versionFlag {
		return &Config{Version: true}, tagstore.NewStore(), nil
	}

	cfg, err := validate(*plcFlag, *pathFlag, *listenFlag, *tagFileFlag)
	if err != nil {
		return nil, nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "debug" {
			cfg.DebugEnabled = true
			cfg.DebugFilter = *debugFlag
		}
	})

	store := tagstore.NewStore()
	if err := loadTagFlags(store, tags); err != nil {
		return nil, nil, err
	}
	if cfg.TagFile != "" {
		if err := loadTagFile(store, cfg.TagFile); err != nil {
			return nil, nil, err
		}
	}

	return cfg, store, nil
}

func validate(plc, path, listen, tagFile string) (*Config, error) {
	if plc == "" {
		return nil, fmt.Errorf("simconfig: --plc is required (ControlLogix or Micro800)")
	}
	kind, err := plcsession.ParseKind(plc)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Kind: kind, Listen: listen, TagFile: tagFile}

	if kind == plcsession.ControlLogix {
		if path == "" {
			return nil, fmt.Errorf("simconfig: --path is required for --plc=ControlLogix")
		}
		p, err := parsePath(path)
		if err != nil {
			return nil, err
		}
		cfg.Path = p
	} else if path != "" {
		return nil, fmt.Errorf("simconfig: --path is not used with --plc=Micro800")
	}

	return cfg, nil
}

func parsePath(s string) ([]byte, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("simconfig: --path must be two comma-separated integers, got %q", s)
	}
	out := make([]byte, 2)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("simconfig: --path segment %q must be an integer 0-255", p)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// loadTagFlags parses each --tag=name:TYPE[dims] value and adds it to store.
func loadTagFlags(store *tagstore.Store, tags tagFlags) error {
	for _, raw := range tags {
		tag, err := parseTagSpec(raw)
		if err != nil {
			return err
		}
		if err := store.Add(tag); err != nil {
			return fmt.Errorf("simconfig: %w", err)
		}
	}
	return nil
}

// parseTagSpec parses "name:TYPE[d]" or "name:TYPE[d1,d2,d3]".
func parseTagSpec(raw string) (*tagstore.Tag, error) {
	nameType := strings.SplitN(raw, ":", 2)
	if len(nameType) != 2 {
		return nil, fmt.Errorf("simconfig: --tag %q must be name:TYPE[dims]", raw)
	}
	name := nameType[0]

	typeDims := nameType[1]
	open := strings.IndexByte(typeDims, '[')
	shut := strings.IndexByte(typeDims, ']')
	if open < 0 || shut < 0 || shut < open {
		return nil, fmt.Errorf("simconfig: --tag %q must declare dimensions in brackets, e.g. DINT[10]", raw)
	}

	typeName := typeDims[:open]
	elemType, err := tagstore.ParseElemType(typeName)
	if err != nil {
		return nil, fmt.Errorf("simconfig: --tag %q: %w", raw, err)
	}

	dimStrs := strings.Split(typeDims[open+1:shut], ",")
	dims := make([]int, 0, len(dimStrs))
	for _, d := range dimStrs {
		v, err := strconv.Atoi(strings.TrimSpace(d))
		if err != nil {
			return nil, fmt.Errorf("simconfig: --tag %q: dimension %q is not an integer", raw, d)
		}
		dims = append(dims, v)
	}

	tag, err := tagstore.New(name, elemType, dims)
	if err != nil {
		return nil, fmt.Errorf("simconfig: --tag %q: %w", raw, err)
	}
	return tag, nil
}

// tagFileEntry mirrors one tag declaration in a --tagfile YAML document.
type tagFileEntry struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Dims []int  `yaml:"dims"`
}

type tagFileDoc struct {
	Tags []tagFileEntry `yaml:"tags"`
}

func loadTagFile(store *tagstore.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("simconfig: reading --tagfile: %w", err)
	}

	var doc tagFileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("simconfig: parsing --tagfile %s: %w", path, err)
	}

	for _, entry := range doc.Tags {
		elemType, err := tagstore.ParseElemType(entry.Type)
		if err != nil {
			return fmt.Errorf("simconfig: tagfile entry %q: %w", entry.Name, err)
		}
		tag, err := tagstore.New(entry.Name, elemType, entry.Dims)
		if err != nil {
			return fmt.Errorf("simconfig: tagfile entry %q: %w", entry.Name, err)
		}
		if err := store.Add(tag); err != nil {
			return fmt.Errorf("simconfig: tagfile entry %q: %w", entry.Name, err)
		}
	}
	return nil
}
