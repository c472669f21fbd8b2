package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Engine holds the settlement engine's fee and accounting parameters.
// Fee percents are basis points with a 10000 denominator.
type Engine struct {
	Owner            common.Address
	EmergencyAdmin   common.Address
	Treasury         common.Address // zero address disables protocol/cancellation fees
	WrappedNative    common.Address // accounting token for native-coin orders
	ProtocolFeeBps   uint64
	CancellationBps  uint64
	DefaultBufferBps uint64 // idle-reserve target applied to newly tracked tokens
}

type Node struct {
	APIAddr string
	DBPath  string
	LogFile string
}

type Oracle struct {
	SlippageBps uint64
}

type Config struct {
	Engine Engine
	Node   Node
	Oracle Oracle
}

func Default() Config {
	return Config{
		Engine: Engine{
			ProtocolFeeBps:   0,
			CancellationBps:  0,
			DefaultBufferBps: 3000, // 30% idle by default
		},
		Node: Node{
			APIAddr: ":8080",
			DBPath:  "data/yieldswap.db",
			LogFile: "data/node.log",
		},
		Oracle: Oracle{
			SlippageBps: 100, // 1%
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("OWNER_ADDRESS"); v != "" {
		cfg.Engine.Owner = common.HexToAddress(v)
	}
	if v := os.Getenv("EMERGENCY_ADMIN"); v != "" {
		cfg.Engine.EmergencyAdmin = common.HexToAddress(v)
	}
	if v := os.Getenv("TREASURY_ADDRESS"); v != "" {
		cfg.Engine.Treasury = common.HexToAddress(v)
	}
	if v := os.Getenv("WRAPPED_NATIVE"); v != "" {
		cfg.Engine.WrappedNative = common.HexToAddress(v)
	}
	if v := os.Getenv("PROTOCOL_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.ProtocolFeeBps = bps
		}
	}
	if v := os.Getenv("CANCELLATION_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.CancellationBps = bps
		}
	}
	if v := os.Getenv("DEFAULT_BUFFER_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil && bps <= 10000 {
			cfg.Engine.DefaultBufferBps = bps
		}
	}
	if v := os.Getenv("ORACLE_SLIPPAGE_BPS"); v != "" {
		if bps, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Oracle.SlippageBps = bps
		}
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
