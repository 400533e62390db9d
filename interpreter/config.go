package interpreter

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// Tracer observes execution without participating in it.
// EVM.StepOnce calls OnOpcode before every instruction and OnFault
// whenever an instruction returns a non-nil error.
type Tracer struct {
	OnOpcode func(pc int, op byte, gas uint64, depth int)
	OnFault  func(pc int, op byte, gas uint64, depth int, err error)
}

// Config carries execution knobs beyond the per-transaction BlockContext/
// TxContext: the hardfork ruleset, a hard ceiling on memory growth
// distinct from the ordinary gas-payable quadratic cost, and an optional
// tracer.
type Config struct {
	ChainConfig *params.ChainConfig
	MemoryLimit uint64
	Tracer      *Tracer
}

// SetDefaults fills in a zero-value Config: every hardfork activated at
// block/time zero, since this core always executes against the latest
// ruleset it knows rather than replaying history against a specific fork
// schedule.
func SetDefaults(cfg *Config) {
	if cfg.ChainConfig == nil {
		cfg.ChainConfig = defaultChainConfig()
	}
	if cfg.MemoryLimit == 0 {
		cfg.MemoryLimit = math.MaxUint64
	}
}

func defaultChainConfig() *params.ChainConfig {
	shanghaiTime := uint64(0)
	cancunTime := uint64(0)
	return &params.ChainConfig{
		ChainID:                       big.NewInt(1),
		HomesteadBlock:                new(big.Int),
		DAOForkBlock:                  new(big.Int),
		DAOForkSupport:                false,
		EIP150Block:                   new(big.Int),
		EIP155Block:                   new(big.Int),
		EIP158Block:                   new(big.Int),
		ByzantiumBlock:                new(big.Int),
		ConstantinopleBlock:           new(big.Int),
		PetersburgBlock:               new(big.Int),
		IstanbulBlock:                 new(big.Int),
		MuirGlacierBlock:              new(big.Int),
		BerlinBlock:                   new(big.Int),
		LondonBlock:                   new(big.Int),
		ArrowGlacierBlock:             nil,
		GrayGlacierBlock:              nil,
		TerminalTotalDifficulty:       big.NewInt(0),
		TerminalTotalDifficultyPassed: true,
		MergeNetsplitBlock:            nil,
		ShanghaiTime:                  &shanghaiTime,
		CancunTime:                    &cancunTime,
	}
}
