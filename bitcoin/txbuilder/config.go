// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"

	"github.com/BoostyLabs/ordtx/bitcoin/ord/inscriptions"
)

// ErrInvalidConfig defines errors class for config validation.
var ErrInvalidConfig = errors.New("invalid config")

// DustPolicy defines how the minimal spendable output value is computed.
type DustPolicy string

const (
	// DustPolicyFixed defines the same dust threshold for every output.
	DustPolicyFixed DustPolicy = "fixed"
	// DustPolicyRelay defines output script dependent dust threshold by relay rules.
	DustPolicyRelay DustPolicy = "relay"
)

const (
	defaultNetwork              = "mainnet"
	defaultFeeRate              = 10
	defaultDustThreshold        = 546
	defaultInscriptionValue     = 546
	defaultOfferAssumedSize     = 450
	defaultOfferChangeThreshold = 600
	defaultDummyUTXOValue       = 600
	defaultDummyTxAssumedSize   = 200
)

// Config defines transaction building policy. Config is passed by value and never mutated by builders.
type Config struct {
	Network              string     `long:"network" description:"bitcoin network" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"signet" default:"mainnet"`
	FeeRate              int64      `long:"feerate" description:"default fee rate in satoshi per virtual byte" default:"10"`
	NoRBF                bool       `long:"norbf" description:"disable replace-by-fee signaling for payment transactions"`
	DustPolicy           DustPolicy `long:"dustpolicy" description:"dust threshold policy" choice:"fixed" choice:"relay" default:"fixed"`
	DustThreshold        int64      `long:"dustthreshold" description:"dust threshold in satoshi for the fixed policy" default:"546"`
	MaxInscriptionSize   int        `long:"maxinscriptionsize" description:"maximum inscription content size in bytes" default:"327680"`
	InscriptionValue     int64      `long:"inscriptionvalue" description:"value in satoshi of the inscription output of the reveal transaction" default:"546"`
	OfferAssumedSize     int64      `long:"offerassumedsize" description:"assumed buyer transaction size in virtual bytes" default:"450"`
	OfferChangeThreshold int64      `long:"offerchangethreshold" description:"minimal buyer change in satoshi to add change output" default:"600"`
	DummyUTXOValue       int64      `long:"dummyutxovalue" description:"value in satoshi of the dummy utxos" default:"600"`
	DummyTxAssumedSize   int64      `long:"dummytxassumedsize" description:"assumed dummy utxos transaction size in virtual bytes" default:"200"`
	Dump                 bool       `long:"dump" description:"log human readable dump of every built transaction"`
}

// DefaultConfig returns config with default values.
func DefaultConfig() Config {
	return Config{
		Network:              defaultNetwork,
		FeeRate:              defaultFeeRate,
		DustPolicy:           DustPolicyFixed,
		DustThreshold:        defaultDustThreshold,
		MaxInscriptionSize:   inscriptions.DefaultMaxContentSize,
		InscriptionValue:     defaultInscriptionValue,
		OfferAssumedSize:     defaultOfferAssumedSize,
		OfferChangeThreshold: defaultOfferChangeThreshold,
		DummyUTXOValue:       defaultDummyUTXOValue,
		DummyTxAssumedSize:   defaultDummyTxAssumedSize,
	}
}

// LoadConfig parses command line styled args over default config and validates the result.
// Unknown options are ignored, so the args can be shared with the caller's own parser.
func LoadConfig(args []string) (Config, error) {
	cfg := DefaultConfig()

	parser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	_, err := parser.ParseArgs(args)
	if err != nil {
		return cfg, errors.Join(ErrInvalidConfig, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks config values.
func (cfg Config) Validate() error {
	if _, err := cfg.ChainParams(); err != nil {
		return err
	}

	switch {
	case cfg.FeeRate <= 0:
		return fmt.Errorf("%w: fee rate must be positive", ErrInvalidConfig)
	case cfg.DustPolicy != DustPolicyFixed && cfg.DustPolicy != DustPolicyRelay:
		return fmt.Errorf("%w: unknown dust policy %q", ErrInvalidConfig, cfg.DustPolicy)
	case cfg.DustThreshold < 0:
		return fmt.Errorf("%w: dust threshold must not be negative", ErrInvalidConfig)
	case cfg.MaxInscriptionSize <= 0:
		return fmt.Errorf("%w: max inscription size must be positive", ErrInvalidConfig)
	case cfg.InscriptionValue <= 0, cfg.DummyUTXOValue <= 0:
		return fmt.Errorf("%w: inscription and dummy utxo values must be positive", ErrInvalidConfig)
	case cfg.OfferAssumedSize <= 0, cfg.DummyTxAssumedSize <= 0:
		return fmt.Errorf("%w: assumed sizes must be positive", ErrInvalidConfig)
	case cfg.OfferChangeThreshold < 0:
		return fmt.Errorf("%w: offer change threshold must not be negative", ErrInvalidConfig)
	}

	return nil
}

// ChainParams returns network params by configured network name.
func (cfg Config) ChainParams() (*chaincfg.Params, error) {
	switch cfg.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}

	return nil, fmt.Errorf("%w: unknown network %q", ErrInvalidConfig, cfg.Network)
}

// feeRateOrDefault returns provided fee rate if positive, otherwise configured one.
func (cfg Config) feeRateOrDefault(feeRate int64) int64 {
	if feeRate > 0 {
		return feeRate
	}

	return cfg.FeeRate
}
