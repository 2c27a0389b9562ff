// Command svca-genesis runs the full identity pipeline: enroll a physical
// source, derive and commit its key, gate a trajectory of state vectors, and
// seal the result into a genesis artifact stored in a local CAS.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/MatVerse-py/svca-lab-genesis/anchor"
	"github.com/MatVerse-py/svca-lab-genesis/anchor/grpctime"
	"github.com/MatVerse-py/svca-lab-genesis/extractor"
	"github.com/MatVerse-py/svca-lab-genesis/gate"
	"github.com/MatVerse-py/svca-lab-genesis/genesis"
	"github.com/MatVerse-py/svca-lab-genesis/identity"
	"github.com/MatVerse-py/svca-lab-genesis/puf"
	"github.com/MatVerse-py/svca-lab-genesis/rules"
	"github.com/MatVerse-py/svca-lab-genesis/sign"
	"github.com/MatVerse-py/svca-lab-genesis/storage/localfs"
	"github.com/MatVerse-py/svca-lab-genesis/trajectory"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("svca-genesis", flag.ExitOnError)
	seed := fs.String("seed", "svca-demo-device-0", "device secret seed")
	pufKind := fs.String("puf", "simulated", "physical source: simulated, optical or sram")
	alg := fs.String("alg", string(identity.AlgSHA3_256), "commitment hash algorithm")
	tolerance := fs.Int("tolerance", 0, "fuzzy extractor error tolerance in bits (0 = derive from source BER)")
	steps := fs.Int("steps", 5, "number of candidate states to gate")
	strict := fs.Bool("strict", false, "block on any violation, not just critical")
	out := fs.String("out", "svca-cas", "local CAS directory for sealed artifacts")
	anchorAddr := fs.String("anchor", "", "remote time-anchor daemon address (optional)")
	name := fs.String("name", "svca-genesis-demo", "experiment name")
	desc := fs.String("desc", "PUF-anchored identity genesis", "experiment description")

	_ = fs.Parse(args)

	source, err := newSource(*pufKind, []byte(*seed))
	if err != nil {
		return err
	}

	// Enrollment reading.
	enrolled, err := source.Generate(nil)
	if err != nil {
		return fmt.Errorf("enrollment readout: %w", err)
	}
	tol := *tolerance
	if tol <= 0 {
		// Enrollment and every later readout each flip up to bits*BER
		// positions, so the distance between two readings can reach twice
		// that. The margin absorbs rounding.
		bits := len(enrolled.Bits) * 8
		tol = int(2*source.BER()*float64(bits)) + 8
	}
	ext, err := extractor.New(32, tol)
	if err != nil {
		return err
	}
	key, helper, err := ext.Gen(enrolled.Bits)
	if err != nil {
		return fmt.Errorf("key generation: %w", err)
	}
	effectiveEntropy := ext.EstimateEntropy(enrolled.Bits, source.BER())

	commit, err := identity.NewCommitment(identity.Algorithm(*alg))
	if err != nil {
		return err
	}
	record := commit.CreateRecord(key, source.ID(), effectiveEntropy, map[string]string{
		"puf_kind": *pufKind,
	})
	ledger := identity.NewLedger()
	if !ledger.Register(record) {
		return identity.ErrDuplicateIdentity
	}

	signSeed := sha3.Sum256(append([]byte("SVCA_SIGN_SEED"), []byte(*seed)...))
	priv, pubKey, err := sign.GenerateEd25519(signSeed[:])
	if err != nil {
		return err
	}

	// Genesis state and gated trajectory.
	now := float64(time.Now().UnixNano()) / 1e9
	traj, genesisHash := trajectory.NewWithGenesis(trajectory.StateVector{
		SourceID:    source.ID(),
		Timestamp:   now,
		EntropyBits: &effectiveEntropy,
		Metadata:    map[string]string{"ber": formatFloat(source.BER())},
	})

	g := gate.New(rules.DefaultSet(), *strict)
	for i := 1; i <= *steps; i++ {
		// Each step proves liveness: a fresh noisy readout must reproduce
		// the enrolled key before the candidate is signed.
		noisy, err := source.Generate(nil)
		if err != nil {
			return fmt.Errorf("step %d readout: %w", i, err)
		}
		recovered, err := ext.Rep(noisy.Bits, helper)
		if err != nil {
			return fmt.Errorf("step %d key recovery: %w", i, err)
		}
		if !commit.Verify(recovered, record.PublicHash, nil) {
			return fmt.Errorf("step %d: recovered key does not match commitment", i)
		}

		candidate := trajectory.StateVector{
			SourceID:    source.ID(),
			Timestamp:   now + float64(i),
			EntropyBits: &effectiveEntropy,
			Metadata:    map[string]string{"ber": formatFloat(noisy.BitErrorRate)},
		}
		digest := sign.StateDigest(candidate.Hash())
		sigValid, err := sign.Verify(pubKey, digest, sign.SignEd25519(digest, priv))
		if err != nil {
			return fmt.Errorf("step %d signature: %w", i, err)
		}

		res, hash := g.ValidateAndAppend(candidate, traj, sigValid)
		fmt.Fprintf(os.Stderr, "step %d: %s (%s) %s\n", i, res.Decision, res.Message, hash)
	}

	// Seal everything into the genesis artifact.
	var opts []anchor.Option
	if *anchorAddr != "" {
		client, err := grpctime.Dial(*anchorAddr, grpctime.DialOptions{Timeout: 5 * time.Second})
		if err != nil {
			return fmt.Errorf("anchor daemon: %w", err)
		}
		defer client.Close()
		opts = append(opts, anchor.WithNetworkSource(client), anchor.WithLedgerSource(client))
	}

	artifact := genesis.NewArtifact(genesis.Config{
		SourceID:    source.ID(),
		Commitment:  record.PublicHash,
		EntropyBits: effectiveEntropy,
		Name:        *name,
		Description: *desc,
		Anchors:     anchor.New(opts...),
	})

	ledgerJSON, err := ledger.ExportJSON()
	if err != nil {
		return err
	}
	trajJSON, err := json.MarshalIndent(traj.ExportAll(), "", "  ")
	if err != nil {
		return err
	}
	if err := artifact.AddBundleEntry("ledger.json", ledgerJSON); err != nil {
		return err
	}
	if err := artifact.AddBundleEntry("trajectory.json", trajJSON); err != nil {
		return err
	}
	if err := artifact.AddMetadata("signing_key", pubKey); err != nil {
		return err
	}
	if err := artifact.AddMetadata("genesis_state_hash", genesisHash); err != nil {
		return err
	}

	sealed, err := artifact.Finalize(context.Background())
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if !artifact.Verify() {
		return fmt.Errorf("sealed artifact failed verification")
	}

	cas, err := localfs.New(*out)
	if err != nil {
		return err
	}
	artifactCID, err := artifact.SaveTo(cas)
	if err != nil {
		return err
	}

	stats := g.Statistics()
	summary := map[string]interface{}{
		"puf_id":          source.ID(),
		"public_hash":     record.PublicHash,
		"entropy_bits":    effectiveEntropy,
		"genesis_hash":    sealed,
		"artifact_cid":    artifactCID.String(),
		"trajectory_len":  traj.Len(),
		"chain_valid":     traj.VerifyChain(),
		"gate_statistics": stats,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func newSource(kind string, seed []byte) (puf.Source, error) {
	switch kind {
	case "simulated":
		return puf.NewSimulated(puf.SimulatedConfig{Seed: seed}), nil
	case "optical":
		return puf.NewOptical(puf.OpticalConfig{MaterialSeed: seed}), nil
	case "sram":
		return puf.NewSRAM(puf.SRAMConfig{ChipSeed: seed}), nil
	default:
		return nil, fmt.Errorf("unknown physical source %q", kind)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
