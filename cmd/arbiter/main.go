// Command arbiter holds one share of the election decryption key: "keygen"
// creates a share, "adjudicate" fetches every accepted ballot from a
// tallyer, aggregates them, and submits this arbiter's partial decryption
// for every candidate slot (spec.md §4.4-4.5, §4.10).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/distvote/evote/api"
	"github.com/distvote/evote/ballot"
	"github.com/distvote/evote/crypto/decryption"
	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/electionfile"
	"github.com/distvote/evote/keyfile"
	"github.com/distvote/evote/log"
	"github.com/distvote/evote/tally"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "keygen":
		runKeygen(os.Args[2:])
	case "adjudicate":
		runAdjudicate(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: arbiter keygen --out <file> | adjudicate [flags]")
	os.Exit(1)
}

func runKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "arbiter.key", "output path for the generated key share")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	k, err := elgamal.GenerateArbiterKey()
	if err != nil {
		log.Fatalf("failed to generate arbiter key: %v", err)
	}
	if err := keyfile.SaveArbiterKey(*out, k); err != nil {
		log.Fatalf("failed to save arbiter key: %v", err)
	}
	fmt.Printf("public key share: %s\n", k.Public.String())
}

func runAdjudicate(args []string) {
	v := viper.New()
	fs := flag.NewFlagSet("adjudicate", flag.ContinueOnError)

	fs.String("tallyer", "http://127.0.0.1:9092", "tallyer base URL")
	fs.String("keyfile", "arbiter.key", "path to this arbiter's key share")
	fs.String("electionfile", "election.json", "path to the election descriptor")
	fs.String("id", "", "this arbiter's id, as registered in the election descriptor (required)")
	fs.String("loglevel", "info", "log level (debug, info, warn, error)")
	fs.String("logoutput", "stderr", "log output (stdout, stderr or filepath)")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	if err := v.BindPFlags(fs); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}
	v.SetEnvPrefix("ARBITER")
	v.AutomaticEnv()

	log.Init(v.GetString("loglevel"), v.GetString("logoutput"), nil)

	arbiterID := v.GetString("id")
	if arbiterID == "" {
		log.Fatalf("--id is required")
	}

	key, err := keyfile.LoadArbiterKey(v.GetString("keyfile"))
	if err != nil {
		log.Fatalf("failed to load arbiter key: %v", err)
	}

	election, err := electionfile.Load(v.GetString("electionfile"))
	if err != nil {
		log.Fatalf("failed to load election descriptor: %v", err)
	}
	electionKey, err := election.ElectionKey()
	if err != nil {
		log.Fatalf("failed to derive election key: %v", err)
	}

	tallyerURL := v.GetString("tallyer")
	entries, err := fetchBallots(tallyerURL)
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

	aggregates, accepted, err := tally.AggregateBallots(ballots, electionKey, election.NumSlots)
	if err != nil {
		log.Fatalf("failed to aggregate ballots: %v", err)
	}
	log.Infow("aggregated ballots", "accepted", accepted, "slots", election.NumSlots)

	for slot, agg := range aggregates {
		partial, err := decryption.Compute(key.Public, agg.A, agg.B, key.PrivateScalar())
		if err != nil {
			log.Fatalf("failed to compute partial decryption for slot %d: %v", slot, err)
		}
		if err := submitPartialDecryption(tallyerURL, slot, arbiterID, partial); err != nil {
			log.Fatalf("failed to submit partial decryption for slot %d: %v", slot, err)
		}
		log.Infow("submitted partial decryption", "slot", slot)
	}
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

func submitPartialDecryption(tallyerURL string, slot int, arbiterID string, partial *decryption.Partial) error {
	body, err := json.Marshal(api.PartialDecryptionRequest{ArbiterID: arbiterID, Partial: partial.Encode()})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/partial-decryptions/%d", tallyerURL, slot)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tallyer returned status %d", resp.StatusCode)
	}
	return nil
}
