// Command frost-wallet runs a 2-of-3 wallet ceremony in a single process:
// each participant generates its share, stores it encrypted, loads it back,
// and two of them sign a message for every supported suite.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-wallet/internal/test"
	"github.com/taurusgroup/frost-wallet/pkg/config"
	"github.com/taurusgroup/frost-wallet/pkg/keystore"
	"github.com/taurusgroup/frost-wallet/pkg/nonce"
	"github.com/taurusgroup/frost-wallet/pkg/party"
	"github.com/taurusgroup/frost-wallet/pkg/pool"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"github.com/taurusgroup/frost-wallet/pkg/session"
	"github.com/taurusgroup/frost-wallet/pkg/suite"
	"github.com/taurusgroup/frost-wallet/protocols/frost"
	"golang.org/x/sync/errgroup"
)

// FrostKeygen runs the key generation of id until it completes.
func FrostKeygen(ctx context.Context, info session.Info, id party.ID, n *test.Network, opts []protocol.Option, log zerolog.Logger) (*frost.KeyPackage, error) {
	index, err := info.IndexOf(id)
	if err != nil {
		return nil, err
	}
	h, err := frost.Keygen(ctx, info, id, n.Transport(index), nil, log, opts...)
	if err != nil {
		return nil, err
	}
	if err = test.HandlerLoop(ctx, index, h, n); err != nil {
		return nil, err
	}
	r, err := h.Result()
	if err != nil {
		return nil, err
	}
	return r.(*frost.KeyPackage), nil
}

// FrostSign signs m with signers, and verifies the result.
func FrostSign(ctx context.Context, info session.Info, key *frost.KeyPackage, store *nonce.Store, opID string, m []byte, signers party.IDSlice, n *test.Network, opts []protocol.Option, log zerolog.Logger) (*frost.Signature, error) {
	h, err := frost.Sign(ctx, info, key, store, opID, m, signers, n.Transport(key.Index), nil, log, opts...)
	if err != nil {
		return nil, err
	}
	if err = test.HandlerLoop(ctx, key.Index, h, n); err != nil {
		return nil, err
	}
	r, err := h.Result()
	if err != nil {
		return nil, err
	}
	signature := r.(*frost.Signature)
	if !signature.Verify(key.GroupPublicKey, m) {
		return nil, errors.New("failed to verify frost signature")
	}
	return signature, nil
}

type participant struct {
	id       party.ID
	keystore *keystore.Keystore
	nonces   *nonce.Store
}

// All runs the whole ceremony for one participant.
func All(ctx context.Context, cfg *config.Config, pl *pool.Pool, p participant, info session.Info, signers party.IDSlice, password, message []byte, keygenNet, signNet *test.Network, log zerolog.Logger) error {
	log = log.With().Str("party", string(p.id)).Str("suite", string(info.Suite)).Logger()
	opts := append(cfg.ProtocolOptions(log), protocol.WithPool(pl))

	key, err := FrostKeygen(ctx, info, p.id, keygenNet, opts, log)
	if err != nil {
		return fmt.Errorf("%s: keygen: %w", p.id, err)
	}
	walletID, err := p.keystore.EncryptAndStore(ctx, key, password)
	if err != nil {
		return fmt.Errorf("%s: store: %w", p.id, err)
	}
	key.Zeroize()

	if !signers.Contains(p.id) {
		return nil
	}

	loaded, err := p.keystore.Load(ctx, walletID, password)
	if err != nil {
		return fmt.Errorf("%s: load: %w", p.id, err)
	}
	defer loaded.Zeroize()

	opID := fmt.Sprintf("%s/%s", walletID, hex.EncodeToString(message))
	signature, err := FrostSign(ctx, info, loaded, p.nonces, opID, message, signers, signNet, opts, log)
	if err != nil {
		return fmt.Errorf("%s: sign: %w", p.id, err)
	}
	log.Info().
		Stringer("wallet", walletID).
		Hex("public_key", loaded.PublicKeyBytes()).
		Hex("signature", signature.Bytes()).
		Msg("signed")
	return nil
}

// newSession registers ids in order and freezes the session.
func newSession(tag suite.Tag, ids party.IDSlice, threshold int) (session.Info, error) {
	s := session.New(fmt.Sprintf("frost-wallet-%s", tag), tag)
	for _, id := range ids {
		if err := s.AddParticipant(id); err != nil {
			return session.Info{}, err
		}
	}
	if err := s.SetThreshold(threshold); err != nil {
		return session.Info{}, err
	}
	if err := s.Freeze(); err != nil {
		return session.Info{}, err
	}
	return s.Snapshot(), nil
}

func run(ctx context.Context, cfg *config.Config, message, password []byte) error {
	log, err := cfg.Logger()
	if err != nil {
		return err
	}

	ids := party.IDSlice{"alice", "bob", "carol"}
	threshold := 2
	signers := ids[:threshold]

	pl := cfg.Pool()
	defer pl.TearDown()

	participants := make([]participant, 0, len(ids))
	for _, id := range ids {
		partyCfg := *cfg
		if partyCfg.Keystore.Path != "" {
			partyCfg.Keystore.Path = filepath.Join(partyCfg.Keystore.Path, string(id))
		}
		ks, store, err := partyCfg.OpenKeystore(log)
		if err != nil {
			return err
		}
		defer store.Close()
		participants = append(participants, participant{id: id, keystore: ks, nonces: cfg.NonceStore()})
	}

	for _, tag := range suite.Tags() {
		info, err := newSession(tag, ids, threshold)
		if err != nil {
			return err
		}
		keygenNet := test.NewNetwork(info.Indices())
		signNet := test.NewNetwork(info.Indices())

		g, ctx := errgroup.WithContext(ctx)
		for _, p := range participants {
			p := p
			g.Go(func() error {
				return All(ctx, cfg, pl, p, info, signers, password, message, keygenNet, signNet, log)
			})
		}
		if err = g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	message := flag.String("message", "transfer:100", "message to sign")
	password := flag.String("password", "correct horse battery staple", "keystore password")
	flag.Parse()

	cfg := config.Default()
	cfg.Keystore.Path = ""
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := run(ctx, cfg, []byte(*message), []byte(*password)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
