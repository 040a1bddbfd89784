package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"daugherty.co/certify/certify"
	"daugherty.co/certify/keys"
	"daugherty.co/certify/ledger"
	"daugherty.co/certify/ledger/grpcledger"
	"daugherty.co/certify/ledger/localfs"
	"daugherty.co/certify/manifest"
	"daugherty.co/certify/receipt"
	"daugherty.co/certify/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "compute":
		return cmdCompute(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "status":
		return cmdStatus(args[1:], out, errOut)
	case "certify":
		return cmdCertify(args[1:], out, errOut)
	case "anchor":
		return cmdAnchor(args[1:], out, errOut)
	case "verify-anchor":
		return cmdVerifyAnchor(args[1:], out, errOut)
	case "receipt-hash":
		return cmdReceiptHash(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "daugherty-certify: source integrity certification CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  daugherty-certify compute --config <layers.yaml> [--root <dir>] --out <baseline>")
	fmt.Fprintln(w, "  daugherty-certify verify --config <layers.yaml> [--root <dir>] --baseline <file> [--mode permissive|strict]")
	fmt.Fprintln(w, "  daugherty-certify status --config <layers.yaml> [--root <dir>] --baseline <file>")
	fmt.Fprintln(w, "  daugherty-certify certify --config <layers.yaml> [--root <dir>] --engine-version <v> --check <class>=pass|fail ... [signer flags] [--out <receipt>] [--ledger <addr> | --ledger-dir <dir>]")
	fmt.Fprintln(w, "  daugherty-certify anchor --receipt <file> (--ledger <addr> | --ledger-dir <dir>)")
	fmt.Fprintln(w, "  daugherty-certify verify-anchor --receipt <file> --tx <id> (--ledger <addr> | --ledger-dir <dir>)")
	fmt.Fprintln(w, "  daugherty-certify receipt-hash <file>")
	fmt.Fprintln(w, "  daugherty-certify key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  daugherty-certify key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  daugherty-certify key list")
	fmt.Fprintln(w, "  daugherty-certify key export --name <name> [--role <role>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - signer flags: --seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>")
	fmt.Fprintln(w, "  - without signer flags the receipt is issued unsigned")
	fmt.Fprintln(w, "  - keys live under ~/.daugherty/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - --ledger dials a daugherty-ledgerd gRPC endpoint; --ledger-dir uses a local file ledger")
	fmt.Fprintln(w, "  - certify with a ledger anchors the receipt; anchoring failure is deferred, not fatal")
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func loadPipeline(configPath, root string, errOut io.Writer) (*certify.Pipeline, bool) {
	if configPath == "" {
		fmt.Fprintln(errOut, "missing --config")
		return nil, false
	}
	cfg, err := manifest.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return nil, false
	}
	if root == "" {
		root = "."
	}
	return &certify.Pipeline{Config: cfg, Root: root}, true
}

// openLedger returns a ledger client for either a gRPC target or a local
// directory, wrapped with retry in both cases.
func openLedger(target, dir string, errOut io.Writer) (ledger.Client, func() error, bool) {
	switch {
	case target != "" && dir != "":
		fmt.Fprintln(errOut, "conflicting flags: --ledger cannot be combined with --ledger-dir")
		return nil, nil, false
	case target != "":
		c, err := grpcledger.Dial(target, grpcledger.DialOptions{})
		if err != nil {
			fmt.Fprintf(errOut, "dial ledger: %v\n", err)
			return nil, nil, false
		}
		return ledger.WithRetry(c, ledger.RetryOptions{}), c.Close, true
	case dir != "":
		l, err := localfs.New(dir)
		if err != nil {
			fmt.Fprintf(errOut, "open ledger dir: %v\n", err)
			return nil, nil, false
		}
		return ledger.WithRetry(l, ledger.RetryOptions{}), func() error { return nil }, true
	default:
		fmt.Fprintln(errOut, "missing ledger: use --ledger <addr> or --ledger-dir <dir>")
		return nil, nil, false
	}
}

func cmdCompute(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("compute", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var configPath string
	var root string
	var outPath string
	fs.StringVar(&configPath, "config", "", "Layer configuration (YAML)")
	fs.StringVar(&root, "root", "", "Source root directory (default .)")
	fs.StringVar(&outPath, "out", "", "Baseline output file")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if outPath == "" {
		fmt.Fprintln(errOut, "missing --out")
		return 2
	}
	p, ok := loadPipeline(configPath, root, errOut)
	if !ok {
		return 2
	}

	m, err := p.WriteBaseline(context.Background(), outPath)
	if err != nil {
		fmt.Fprintf(errOut, "compute: %v\n", err)
		return 1
	}
	master := manifest.Master(m)
	fmt.Fprintf(out, "Master-Fingerprint: %s\n", master.Aggregate)
	fmt.Fprintf(out, "Baseline: %s\n", outPath)
	for _, mf := range m.Missing {
		fmt.Fprintf(errOut, "warning: layer %q: non-critical file %q is missing\n", mf.Layer, mf.Path)
	}
	if fb := m.FallbackPaths(); len(fb) > 0 {
		fmt.Fprintf(errOut, "warning: %d file(s) fingerprinted from raw bytes: %s\n", len(fb), strings.Join(fb, ", "))
	}
	return 0
}

func parseMode(mode string, errOut io.Writer) (verify.Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "permissive":
		return verify.Permissive, true
	case "strict":
		return verify.Strict, true
	default:
		fmt.Fprintln(errOut, "invalid --mode (expected permissive or strict)")
		return 0, false
	}
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var configPath string
	var root string
	var baselinePath string
	var mode string
	fs.StringVar(&configPath, "config", "", "Layer configuration (YAML)")
	fs.StringVar(&root, "root", "", "Source root directory (default .)")
	fs.StringVar(&baselinePath, "baseline", "", "Baseline file from 'compute'")
	fs.StringVar(&mode, "mode", "permissive", "Verification mode: permissive or strict")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if baselinePath == "" {
		fmt.Fprintln(errOut, "missing --baseline")
		return 2
	}
	p, ok := loadPipeline(configPath, root, errOut)
	if !ok {
		return 2
	}
	vmode, ok := parseMode(mode, errOut)
	if !ok {
		return 2
	}

	res, err := p.Verify(context.Background(), baselinePath, vmode)
	if err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "Status: %s\n", res.Status)
	for _, l := range res.DivergingLayers {
		fmt.Fprintf(out, "Diverging-Layer: %s\n", l)
	}
	for _, f := range res.MissingFiles {
		fmt.Fprintf(out, "Missing-File: %s\n", f)
	}
	for _, f := range res.FallbackFiles {
		fmt.Fprintf(out, "Fallback-File: %s\n", f)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(errOut, "warning: %s\n", w)
	}
	if !res.OK() {
		return 1
	}
	return 0
}

func cmdStatus(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var configPath string
	var root string
	var baselinePath string
	fs.StringVar(&configPath, "config", "", "Layer configuration (YAML)")
	fs.StringVar(&root, "root", "", "Source root directory (default .)")
	fs.StringVar(&baselinePath, "baseline", "", "Baseline file from 'compute'")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if baselinePath == "" {
		fmt.Fprintln(errOut, "missing --baseline")
		return 2
	}
	p, ok := loadPipeline(configPath, root, errOut)
	if !ok {
		return 2
	}

	rep, err := p.Status(context.Background(), baselinePath)
	if err != nil {
		fmt.Fprintf(errOut, "status: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Baseline: %s\n", rep.Baseline.Aggregate)
	fmt.Fprintf(out, "Current:  %s\n", rep.Current.Aggregate)
	if rep.Match {
		fmt.Fprintln(out, "Match: yes")
		return 0
	}
	fmt.Fprintln(out, "Match: no")
	return 1
}

func parseChecks(items []string) (map[string]bool, error) {
	checks := make(map[string]bool, len(items))
	for _, it := range items {
		k, v, ok := strings.Cut(it, "=")
		if !ok {
			return nil, fmt.Errorf("expected <class>=pass|fail, got %q", it)
		}
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New("empty validation class")
		}
		if _, exists := checks[k]; exists {
			return nil, fmt.Errorf("duplicate validation class %q", k)
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "pass":
			checks[k] = true
		case "fail":
			checks[k] = false
		default:
			return nil, fmt.Errorf("class %q: expected pass or fail, got %q", k, v)
		}
	}
	return checks, nil
}

func cmdCertify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("certify", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var configPath string
	var root string
	var engineVersion string
	var checks stringList
	var seedHex string
	var signerName string
	var signerRole string
	var keyFile string
	var hashAlg string
	var outPath string
	var ledgerAddr string
	var ledgerDir string
	fs.StringVar(&configPath, "config", "", "Layer configuration (YAML)")
	fs.StringVar(&root, "root", "", "Source root directory (default .)")
	fs.StringVar(&engineVersion, "engine-version", "", "Engine version recorded in the receipt")
	fs.Var(&checks, "check", "Validation outcome as <class>=pass|fail (repeatable, e.g. sat=pass)")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name (from 'daugherty-certify key init')")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, optionally use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file (hex) created by 'daugherty-certify key init/derive'")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "Signature digest: sha256, sha512, or sha3-256")
	fs.StringVar(&outPath, "out", "", "Receipt output file (default stdout)")
	fs.StringVar(&ledgerAddr, "ledger", "", "daugherty-ledgerd gRPC address to anchor against")
	fs.StringVar(&ledgerDir, "ledger-dir", "", "Local file ledger directory to anchor against")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if engineVersion == "" {
		fmt.Fprintln(errOut, "missing --engine-version")
		return 2
	}
	if len(checks) == 0 {
		fmt.Fprintln(errOut, "missing --check (at least one validation class required)")
		return 2
	}
	if seedHex != "" && (signerName != "" || keyFile != "") {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --signer or --key-file")
		return 2
	}
	if signerName != "" && keyFile != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --signer cannot be combined with --key-file")
		return 2
	}
	p, ok := loadPipeline(configPath, root, errOut)
	if !ok {
		return 2
	}
	validation, err := parseChecks(checks)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --check: %v\n", err)
		return 2
	}

	var ropts receipt.RenderOptions
	if seedHex != "" || signerName != "" || keyFile != "" {
		ks, err := keys.Open("")
		if err != nil {
			fmt.Fprintf(errOut, "keys: %v\n", err)
			return 1
		}
		seed, err := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
		if err != nil {
			fmt.Fprintf(errOut, "invalid signer: %v\n", err)
			return 2
		}
		ropts.PrivateKey = ed25519.NewKeyFromSeed(seed)
		ropts.IssuerKey = keys.IssuerKeyFromSeed(seed)
		ropts.HashAlg = hashAlg
	}

	opts := certify.CertifyOptions{
		EngineVersion: engineVersion,
		Validation:    validation,
		Receipt:       ropts,
	}
	var closeLedger func() error
	if ledgerAddr != "" || ledgerDir != "" {
		client, closer, ok := openLedger(ledgerAddr, ledgerDir, errOut)
		if !ok {
			return 2
		}
		opts.Ledger = client
		closeLedger = closer
	}

	res, err := p.Certify(context.Background(), opts)
	if closeLedger != nil {
		_ = closeLedger()
	}
	if err != nil {
		fmt.Fprintf(errOut, "certify: %v\n", err)
		return 1
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, res.Document, 0o644); err != nil {
			fmt.Fprintf(errOut, "write receipt: %v\n", err)
			return 1
		}
	} else {
		_, _ = out.Write(res.Document)
	}

	fmt.Fprintf(errOut, "Stage: %s\n", res.Stage)
	fmt.Fprintf(errOut, "Content-Hash: %s\n", res.Receipt.ContentHash)
	if res.TxID != "" {
		fmt.Fprintf(errOut, "Tx-ID: %s\n", res.TxID)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(errOut, "warning: %s\n", w)
	}
	return 0
}

func cmdAnchor(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("anchor", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var receiptPath string
	var ledgerAddr string
	var ledgerDir string
	fs.StringVar(&receiptPath, "receipt", "", "Receipt file")
	fs.StringVar(&ledgerAddr, "ledger", "", "daugherty-ledgerd gRPC address")
	fs.StringVar(&ledgerDir, "ledger-dir", "", "Local file ledger directory")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if receiptPath == "" {
		fmt.Fprintln(errOut, "missing --receipt")
		return 2
	}
	doc, err := os.ReadFile(receiptPath)
	if err != nil {
		fmt.Fprintf(errOut, "read receipt: %v\n", err)
		return 1
	}
	client, closer, ok := openLedger(ledgerAddr, ledgerDir, errOut)
	if !ok {
		return 2
	}
	defer func() { _ = closer() }()

	txID, err := certify.Anchor(context.Background(), client, doc)
	if err != nil {
		fmt.Fprintf(errOut, "anchor: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, txID)
	return 0
}

func cmdVerifyAnchor(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify-anchor", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var receiptPath string
	var txID string
	var ledgerAddr string
	var ledgerDir string
	fs.StringVar(&receiptPath, "receipt", "", "Receipt file")
	fs.StringVar(&txID, "tx", "", "Ledger transaction id")
	fs.StringVar(&ledgerAddr, "ledger", "", "daugherty-ledgerd gRPC address")
	fs.StringVar(&ledgerDir, "ledger-dir", "", "Local file ledger directory")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if receiptPath == "" {
		fmt.Fprintln(errOut, "missing --receipt")
		return 2
	}
	if txID == "" {
		fmt.Fprintln(errOut, "missing --tx")
		return 2
	}
	doc, err := os.ReadFile(receiptPath)
	if err != nil {
		fmt.Fprintf(errOut, "read receipt: %v\n", err)
		return 1
	}
	client, closer, ok := openLedger(ledgerAddr, ledgerDir, errOut)
	if !ok {
		return 2
	}
	defer func() { _ = closer() }()

	res, stage, err := certify.VerifyAnchor(context.Background(), client, txID, doc)
	if err != nil {
		fmt.Fprintf(errOut, "verify-anchor: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Status: %s\n", res.Status)
	fmt.Fprintf(out, "Stage: %s\n", stage)
	fmt.Fprintf(out, "Local-Hash: %s\n", res.LocalHash)
	if res.AnchoredHash != "" {
		fmt.Fprintf(out, "Anchored-Hash: %s\n", res.AnchoredHash)
		fmt.Fprintf(out, "Block-Timestamp: %s\n", res.BlockTimestamp.UTC().Format(time.RFC3339))
	}
	if res.Status != verify.StatusAuthentic {
		return 1
	}
	return 0
}

func cmdReceiptHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("receipt-hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: daugherty-certify receipt-hash <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	hash, err := receipt.ContentHash(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid receipt: %v\n", err)
		return 1
	}
	if err := receipt.VerifyContentHash(b); err != nil {
		fmt.Fprintf(errOut, "warning: embedded Content-Hash does not match body\n")
	}
	_, _ = fmt.Fprintln(out, hash)
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "daugherty-certify key: minimal local key management")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  daugherty-certify key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  daugherty-certify key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  daugherty-certify key list")
	fmt.Fprintln(w, "  daugherty-certify key export --name <name> [--role <role>]")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var force bool
	fs.StringVar(&name, "name", "", "Key name (directory under ~/.daugherty/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible setups)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, err := keys.Open("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	var seed []byte
	if seedHex != "" {
		seed, err = keys.ParseSeedHex(seedHex)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	issuerKey, path, err := ks.InitRootKey(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", issuerKey)
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var role string
	var force bool
	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. builder, auditor)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	if err := keys.CheckName(from); err != nil {
		fmt.Fprintf(errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := keys.CheckName(role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, err := keys.Open("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	issuerKey, path, err := ks.DeriveRoleKey(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", issuerKey)
	fmt.Fprintf(out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := keys.Open("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.List()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Name)
		roles := append([]string(nil), e.Roles...)
		sort.Strings(roles)
		for _, r := range roles {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var role string
	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role (if set, exports derived role key)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	if role != "" {
		if err := keys.CheckName(role); err != nil {
			fmt.Fprintf(errOut, "invalid --role: %v\n", err)
			return 2
		}
	}
	ks, err := keys.Open("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	issuerKey, err := ks.ExportIssuerKey(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, issuerKey)
	return 0
}
