package universe

import (
	"fmt"
	"os"

	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/igefined/b3-pulse/internal/config"
)

var Module = fx.Module("universe",
	fx.Provide(func(cfg *config.Config) (*Universe, error) {
		if cfg.Universe.File == "" {
			return Default(), nil
		}
		return LoadFile(cfg.Universe.File)
	}),
)

// Universe is the static set of instruments polled for the process lifetime.
type Universe struct {
	Equities     []string `yaml:"equities"`
	RateFutures  []string `yaml:"rate_futures"`
	IndexFutures []string `yaml:"index_futures"`
	IndexAliases []string `yaml:"index_aliases"`
}

const (
	IndexSymbol = "IBOV"
	WIN         = "WIN@"
	WDO         = "WDO@"
	DIProxy     = "DI1F29"
)

func Default() *Universe {
	return &Universe{
		Equities: []string{
			"VALE3", "ITUB4", "PETR4", "PETR3", "ELET3", "BBDC4", "B3SA3", "ITSA4",
			"BPAC11", "BBAS3", "EMBR3", "WEGE3", "ABEV3", "EQTL3", "RDOR3", "RENT3",
			"SUZB3", "ENEV3", "PRIO3", "VBBR3", "VIVT3", "TOTS3", "RADL3", "UGPA3",
			"BBDC3", "CMIG4", "GGBR4", "CPLE6", "BBSE3", "TIMS3", "RAIL3", "LREN3",
			"ENGI11", "KLBN11", "ELET6", "ASAI3", "HAPV3", "BRFS3", "ALOS3",
			"SMFT3", "SANB11", "EGIE3", "ISAE4", "PSSA3", "MULT3", "CSAN3",
			"NATU3", "CMIN3", "CYRE3", "TAEE11", "CPFE3", "HYPE3", "FLRY3",
			"POMO4", "GOAU4", "CSNA3", "COGN3", "IGTI11", "DIRR3", "CURY3", "MRFG3",
			"BRAP4", "MGLU3", "IRBR3", "VIVA3", "RECV3", "YDUQ3", "AURE3",
			"SLCE3", "MRVE3", "BEEF3", "CEAB3", "BRKM5", "USIM5", "VAMO3", "PCAR3",
			"RAIZ4", "CVCB3", "SBSP3", "CXSE3",
		},
		RateFutures: []string{
			"DI1F26", "DI1F27", "DI1F28", "DI1F29", "DI1F30", "DI1F31", "DI1F32",
			"DI1F33", "DI1F34", "DI1F35", "DI1F36", "DI1F37", "DI1F38", "DI1F39", "DI1F40",
		},
		IndexFutures: []string{WIN, WDO},
		IndexAliases: []string{"IBOV", "BVMF.IBOV", "IBOVESPA"},
	}
}

// LoadFile reads a YAML universe definition.
func LoadFile(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode universe file: %w", err)
	}

	if len(u.All()) == 0 {
		return nil, fmt.Errorf("universe file %s defines no symbols", path)
	}

	return &u, nil
}

// All returns the union of every set, first occurrence order, duplicates removed.
func (u *Universe) All() []string {
	seen := make(map[string]struct{})
	var all []string

	for _, set := range [][]string{u.Equities, u.RateFutures, u.IndexFutures, u.IndexAliases} {
		for _, symbol := range set {
			if _, ok := seen[symbol]; ok {
				continue
			}
			seen[symbol] = struct{}{}
			all = append(all, symbol)
		}
	}

	return all
}
