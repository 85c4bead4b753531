// Command spp decodes CCSDS Space Packet Protocol captures against an
// XTCE packet-structure description.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/groundlink/spp"
	"github.com/groundlink/spp/internal/config"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	if args[0] == "--version" {
		fmt.Println("spp", version)
		return 0
	}

	switch args[0] {
	case "describe":
		return cmdDescribe(args[1:])
	case "packets":
		return cmdPackets(args[1:])
	default:
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  spp describe <xtce.xml>
  spp packets [--config spp.yaml] [--apid N]... <xtce.xml> <capture.bin>
  spp --version`)
}

func loadTypeSystem(path string) (*spp.TypeSystem, int) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return nil, 2
	}
	defer f.Close()

	ts, err := spp.Load(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "malformed xtce document:", err)
		return nil, 3
	}
	return ts, 0
}

func cmdDescribe(args []string) int {
	fs := pflag.NewFlagSet("describe", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		usage()
		return 2
	}

	ts, code := loadTypeSystem(fs.Arg(0))
	if ts == nil {
		return code
	}

	fmt.Printf("space system: %s\n", ts.SpaceSystemName)
	fmt.Printf("parameter types: %d\n", len(ts.ParameterTypes))
	fmt.Printf("parameters: %d\n", len(ts.Parameters))
	fmt.Println()
	fmt.Println("container tree:")
	printContainerTree(ts)
	return 0
}

func printContainerTree(ts *spp.TypeSystem) {
	root := ts.Containers.Root()
	for _, cand := range spp.DescribeContainers(root) {
		indent := strings.Repeat("  ", len(cand.Chain)-1)
		marker := "+"
		fmt.Printf("%s%s %s (%d entries)\n", indent, marker, cand.Container.Name, len(cand.Container.Entries))
	}
}

func cmdPackets(args []string) int {
	fs := pflag.NewFlagSet("packets", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to spp.yaml")
	var apids []int
	fs.IntSliceVar(&apids, "apid", nil, "restrict the decoder's APID allowlist (repeatable)")
	secHdrBytes := fs.Int("secondary-header-bytes", -1, "bytes to strip from continuation/last segments")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		usage()
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 2
		}
		cfg = loaded
	}
	if len(apids) == 0 {
		apids = cfg.APIDs
	}
	if *secHdrBytes < 0 {
		*secHdrBytes = cfg.SecHdrLen
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	spp.SetLogger(logger)

	ts, code := loadTypeSystem(fs.Arg(0))
	if ts == nil {
		return code
	}

	capture, err := spp.OpenCapture(fs.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}
	defer capture.Close()

	var decoderOpts []spp.DecoderOption
	if len(apids) > 0 {
		decoderOpts = append(decoderOpts, spp.WithAPIDAllowlist(apids...))
	}

	framer := spp.NewFramer(capture)
	var reasmOpts []spp.ReassemblerOption
	if *secHdrBytes > 0 {
		reasmOpts = append(reasmOpts, spp.WithSecondaryHeaderBytes(*secHdrBytes))
	}
	reasm := spp.NewReassembler(reasmOpts...)

	enc := json.NewEncoder(os.Stdout)
	sawMalformed := false

	decoder := spp.NewDecoder(ts, decoderOpts...)
	for {
		pkt, err := framer.Next()
		if err != nil {
			break
		}
		logical, err := reasm.Feed(pkt)
		if err != nil {
			fmt.Fprintln(os.Stderr, "reassembly error:", err)
			sawMalformed = true
			continue
		}
		for _, lp := range logical {
			record, warnings, err := decoder.Decode(lp)
			if err != nil {
				fmt.Fprintln(os.Stderr, "decode error:", err)
				sawMalformed = true
				continue
			}
			if err := enc.Encode(recordToJSON(record, warnings)); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				return 2
			}
		}
	}

	if sawMalformed {
		return 4
	}
	return 0
}

type jsonField struct {
	Name    string `json:"name"`
	Raw     string `json:"raw"`
	Derived string `json:"derived"`
}

type jsonRecord struct {
	Fields   []jsonField `json:"fields"`
	Warnings []string    `json:"warnings,omitempty"`
}

func recordToJSON(r *spp.PacketRecord, warnings []spp.Warning) jsonRecord {
	out := jsonRecord{Fields: make([]jsonField, len(r.Fields))}
	for i, f := range r.Fields {
		out.Fields[i] = jsonField{Name: f.Name, Raw: f.Raw.String(), Derived: f.Derived.String()}
	}
	for _, w := range warnings {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s@%d: %s", w.Kind, w.Position, w.Message))
	}
	return out
}

