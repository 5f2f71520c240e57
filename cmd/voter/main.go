// Command voter is the election participant's CLI: "register" obtains a
// signed certificate from a registrar, "vote" builds and submits a ballot
// to a tallyer, and "verify" independently re-verifies the public ballot
// transcripts and recomputes the per-candidate aggregates the way any
// external observer could (spec.md §4.10, §9).
package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/distvote/evote/api"
	"github.com/distvote/evote/ballot"
	"github.com/distvote/evote/crypto/identity"
	"github.com/distvote/evote/electionfile"
	"github.com/distvote/evote/keyfile"
	"github.com/distvote/evote/log"
	"github.com/distvote/evote/tally"
	"github.com/distvote/evote/transport"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "register":
		runRegister(os.Args[2:])
	case "vote":
		runVote(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: voter register [flags] | vote [flags] v1 v2 ... | verify [flags]")
	os.Exit(1)
}

func commonFlags(name string) (*flag.FlagSet, *viper.Viper) {
	v := viper.New()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.String("loglevel", "info", "log level (debug, info, warn, error)")
	fs.String("logoutput", "stderr", "log output (stdout, stderr or filepath)")
	return fs, v
}

// parseFlags parses fs against args and binds it into v, returning any
// positional (non-flag) arguments left over.
func parseFlags(fs *flag.FlagSet, v *viper.Viper, args []string) []string {
	if err := fs.Parse(args); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	v.SetEnvPrefix("VOTER")
	v.AutomaticEnv()
	log.Init(v.GetString("loglevel"), v.GetString("logoutput"), nil)
	return fs.Args()
}

func runRegister(args []string) {
	fs, v := commonFlags("register")
	fs.String("registrar", "http://127.0.0.1:9091", "registrar base URL")
	fs.String("keyfile", "voter.key", "path to this voter's signing key")
	fs.String("certfile", "voter.cert", "path to persist the issued certificate")
	fs.String("electionfile", "election.json", "path to the election descriptor, for the registrar's handshake key")
	fs.String("id", "", "this voter's id (required)")
	parseFlags(fs, v, args)

	voterID := v.GetString("id")
	if voterID == "" {
		log.Fatalf("--id is required")
	}

	keys, err := keyfile.LoadOrGenerateIdentity(v.GetString("keyfile"))
	if err != nil {
		log.Fatalf("failed to load signing key: %v", err)
	}

	election, err := electionfile.Load(v.GetString("electionfile"))
	if err != nil {
		log.Fatalf("failed to load election descriptor: %v", err)
	}
	registrarPublic, err := election.RegistrarPublicKey()
	if err != nil {
		log.Fatalf("failed to derive registrar public key: %v", err)
	}

	registrarURL := v.GetString("registrar")
	session, err := handshake(registrarURL, registrarPublic)
	if err != nil {
		log.Fatalf("handshake with registrar failed: %v", err)
	}

	plaintext, err := json.Marshal(api.RegisterRequest{VoterID: voterID, VerificationKey: keys.PublicBytes()})
	if err != nil {
		log.Fatalf("failed to marshal registration request: %v", err)
	}
	sealed, err := session.Encrypt(plaintext)
	if err != nil {
		log.Fatalf("failed to seal registration request: %v", err)
	}
	envelope, err := json.Marshal(api.SealedEnvelope{SessionID: session.id, Sealed: sealed})
	if err != nil {
		log.Fatalf("failed to marshal sealed envelope: %v", err)
	}

	resp, err := http.Post(registrarURL+api.RegisterEndpoint, "application/json", bytes.NewReader(envelope))
	if err != nil {
		log.Fatalf("failed to reach registrar: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("registrar returned status %d", resp.StatusCode)
	}
	var regResp api.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&regResp); err != nil {
		log.Fatalf("failed to decode registration response: %v", err)
	}

	cert := certFile{VerificationKey: regResp.VerificationKey, CertificateSig: regResp.CertificateSig}
	if err := cert.save(v.GetString("certfile")); err != nil {
		log.Fatalf("failed to persist certificate: %v", err)
	}
	log.Infow("registered", "voterId", voterID)
}

// clientSession pairs a transport.Session with the registrar-assigned id
// that names it on the wire.
type clientSession struct {
	*transport.Session
	id string
}

// handshake opens a transport session with the registrar at baseURL and
// authenticates its response against registrarPublic before trusting the
// derived session key (spec.md §6, §4.9).
func handshake(baseURL string, registrarPublic *ecdsa.PublicKey) (*clientSession, error) {
	session, err := transport.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	clientPublic := session.PublicValue().Bytes()

	body, err := json.Marshal(api.HandshakeRequest{ClientDHPublic: clientPublic})
	if err != nil {
		return nil, fmt.Errorf("marshal handshake request: %w", err)
	}
	resp, err := http.Post(baseURL+api.HandshakeEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("reach registrar: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registrar returned status %d", resp.StatusCode)
	}
	var handshakeResp api.HandshakeResponse
	if err := json.NewDecoder(resp.Body).Decode(&handshakeResp); err != nil {
		return nil, fmt.Errorf("decode handshake response: %w", err)
	}

	handshakeInput := identity.HandshakeSignatureInput(handshakeResp.ServerDHPublic, clientPublic)
	if !identity.Verify(registrarPublic, handshakeInput, handshakeResp.ServerSig) {
		return nil, fmt.Errorf("registrar handshake signature does not verify")
	}
	if err := session.Complete(new(big.Int).SetBytes(handshakeResp.ServerDHPublic)); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	return &clientSession{Session: session, id: handshakeResp.SessionID}, nil
}

func runVote(args []string) {
	fs, v := commonFlags("vote")
	fs.String("tallyer", "http://127.0.0.1:9092", "tallyer base URL")
	fs.String("keyfile", "voter.key", "path to this voter's signing key")
	fs.String("certfile", "voter.cert", "path to the certificate issued by register")
	fs.String("electionfile", "election.json", "path to the election descriptor")
	fs.String("id", "", "this voter's id, matching the one used at register time (required)")
	fs.Int("k", -1, "declared number of affirmative choices (required)")
	positional := parseFlags(fs, v, args)
	choices, err := parseChoices(positional)
	if err != nil {
		log.Fatalf("invalid choices: %v", err)
	}

	voterID := v.GetString("id")
	if voterID == "" {
		log.Fatalf("--id is required")
	}
	k := v.GetInt("k")
	if k < 0 {
		log.Fatalf("--k is required")
	}

	keys, err := keyfile.LoadOrGenerateIdentity(v.GetString("keyfile"))
	if err != nil {
		log.Fatalf("failed to load signing key: %v", err)
	}
	cert, err := loadCertFile(v.GetString("certfile"))
	if err != nil {
		log.Fatalf("failed to load certificate: %v", err)
	}

	election, err := electionfile.Load(v.GetString("electionfile"))
	if err != nil {
		log.Fatalf("failed to load election descriptor: %v", err)
	}
	electionKey, err := election.ElectionKey()
	if err != nil {
		log.Fatalf("failed to derive election key: %v", err)
	}
	if len(choices) != election.NumSlots {
		log.Fatalf("expected %d choices, got %d", election.NumSlots, len(choices))
	}

	b, err := ballot.Build(electionKey, choices, k, election.NumSlots)
	if err != nil {
		log.Fatalf("failed to build ballot: %v", err)
	}
	votes, choiceProofs, countCiphertext, countProof := b.EncodeComponents()

	ballotInput := identity.BallotSignatureInput(votes, choiceProofs, countCiphertext, countProof)
	voterSig, err := keys.Sign(ballotInput)
	if err != nil {
		log.Fatalf("failed to sign ballot: %v", err)
	}

	req := api.BallotRequest{
		VoterID:         voterID,
		VerificationKey: cert.VerificationKey,
		CertificateSig:  cert.CertificateSig,
		Votes:           votes,
		ChoiceProofs:    choiceProofs,
		CountCiphertext: countCiphertext,
		CountProof:      countProof,
		VoterSig:        voterSig,
	}
	body, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("failed to marshal ballot request: %v", err)
	}
	resp, err := http.Post(v.GetString("tallyer")+api.BallotsEndpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to reach tallyer: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("tallyer returned status %d", resp.StatusCode)
	}
	var ballotResp api.BallotResponse
	if err := json.NewDecoder(resp.Body).Decode(&ballotResp); err != nil {
		log.Fatalf("failed to decode ballot response: %v", err)
	}
	log.Infow("vote accepted", "voterId", ballotResp.VoterID)
}

// runVerify fetches every accepted ballot and the published result, then
// independently re-verifies every ballot's proofs and recomputes the
// per-candidate aggregates, exactly as tally.AggregateBallots does inside
// the tallyer, and prints how many ballots passed beside the published
// counts (spec.md §9). It does not check partial decryptions and does not
// compare the published counts with the recomputed aggregates.
func runVerify(args []string) {
	fs, v := commonFlags("verify")
	fs.String("tallyer", "http://127.0.0.1:9092", "tallyer base URL")
	fs.String("electionfile", "election.json", "path to the election descriptor")
	parseFlags(fs, v, args)

	election, err := electionfile.Load(v.GetString("electionfile"))
	if err != nil {
		log.Fatalf("failed to load election descriptor: %v", err)
	}
	electionKey, err := election.ElectionKey()
	if err != nil {
		log.Fatalf("failed to derive election key: %v", err)
	}

	entries, err := fetchBallots(v.GetString("tallyer"))
	if err != nil {
		log.Fatalf("failed to fetch ballots: %v", err)
	}
	ballots := make([]*ballot.Ballot, 0, len(entries))
	for _, e := range entries {
		b, err := ballot.DecodeComponents(e.Votes, e.ChoiceProofs, e.CountCiphertext, e.CountProof)
		if err != nil {
			log.Warnw("skipping unparsable ballot", "voter", e.VoterID, "error", err)
			continue
		}
		ballots = append(ballots, b)
	}

	_, accepted, err := tally.AggregateBallots(ballots, electionKey, election.NumSlots)
	if err != nil {
		log.Fatalf("failed to recompute aggregation: %v", err)
	}

	result, err := fetchResult(v.GetString("tallyer"))
	if err != nil {
		log.Fatalf("failed to fetch result: %v", err)
	}

	fmt.Printf("fetched %d ballots, %d passed independent verification\n", len(entries), accepted)
	fmt.Printf("published result: %v\n", result.Counts)
}

func parseChoices(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("choice %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

func fetchBallots(tallyerURL string) ([]api.BallotListEntry, error) {
	resp, err := http.Get(tallyerURL + api.BallotsEndpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tallyer returned status %d", resp.StatusCode)
	}
	var entries []api.BallotListEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func fetchResult(tallyerURL string) (*api.ResultResponse, error) {
	resp, err := http.Get(tallyerURL + api.ResultEndpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tallyer returned status %d", resp.StatusCode)
	}
	var result api.ResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// certFile is the on-disk shape of a voter's certificate, as issued by a
// registrar and required on every ballot submission.
type certFile struct {
	VerificationKey []byte `json:"verificationKey"`
	CertificateSig  []byte `json:"certificateSig"`
}

func (c certFile) save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func loadCertFile(path string) (*certFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var c certFile
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}
