package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Instrument describes one tradable symbol and where its simulated price starts.
type Instrument struct {
	Symbol     string  `yaml:"symbol"`
	Token      int64   `yaml:"token"`
	Exchange   string  `yaml:"exchange"`
	StartPrice float64 `yaml:"start_price"`
}

type InstrumentsFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// DefaultInstruments is used when INSTRUMENTS_PATH is unset.
var DefaultInstruments = []Instrument{
	{Symbol: "NIFTY 50", Token: 256265, Exchange: "NSE", StartPrice: 22000},
}

func LoadInstruments(path string) ([]Instrument, error) {
	if path == "" {
		return DefaultInstruments, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}

	var f InstrumentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("parse instruments: %s lists no instruments", path)
	}

	for i, inst := range f.Instruments {
		if inst.Symbol == "" || inst.Token == 0 {
			return nil, fmt.Errorf("instrument #%d: symbol and token are required", i)
		}
		if inst.StartPrice <= 0 {
			f.Instruments[i].StartPrice = 100
		}
	}

	return f.Instruments, nil
}
