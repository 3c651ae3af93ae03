package bubblemaps

import (
	"encoding/json"
	"fmt"
	"time"
)

// TopHolderCount limits how many holders the metrics carry
const TopHolderCount = 5

// Holder is one entry of the top-holder list
type Holder struct {
	Address      string  `json:"address"`
	Name         string  `json:"name"`
	SharePercent float64 `json:"share_percent"`
	IsContract   bool    `json:"is_contract"`
}

// SupplyDistribution summarizes where the identified supply sits
type SupplyDistribution struct {
	PercentInCEXs      float64 `json:"percent_in_cexs"`
	PercentInContracts float64 `json:"percent_in_contracts"`
}

// TransferActivity summarizes the transfer graph behind the map
type TransferActivity struct {
	LinkCount  int    `json:"link_count"`
	LastUpdate string `json:"last_update"`
}

// HolderMetrics is the all-or-nothing holder/decentralization view of one
// token. Both upstream endpoints must succeed to produce it.
type HolderMetrics struct {
	FullName              string             `json:"full_name"`
	Symbol                string             `json:"symbol"`
	IsNFT                 bool               `json:"is_nft"`
	DecentralizationScore float64            `json:"decentralization_score"`
	TopHolders            []Holder           `json:"top_holders"`
	Supply                SupplyDistribution `json:"supply"`
	Transfers             TransferActivity   `json:"transfers"`
	FetchedAt             time.Time          `json:"fetched_at"`
}

// mapMetadataResponse mirrors the /map-metadata endpoint
type mapMetadataResponse struct {
	Status                string   `json:"status"`
	DecentralisationScore *float64 `json:"decentralisation_score"`
	IdentifiedSupply      struct {
		PercentInCEXs      float64 `json:"percent_in_cexs"`
		PercentInContracts float64 `json:"percent_in_contracts"`
	} `json:"identified_supply"`
	DtUpdate string `json:"dt_update"`
}

// mapDataResponse mirrors the /map-data endpoint
type mapDataResponse struct {
	FullName string `json:"full_name"`
	Symbol   string `json:"symbol"`
	IsX721   bool   `json:"is_X721"`
	Nodes    []struct {
		Address    string  `json:"address"`
		Name       string  `json:"name"`
		Percentage float64 `json:"percentage"`
		IsContract bool    `json:"is_contract"`
	} `json:"nodes"`
	Links []struct {
		Source int `json:"source"`
		Target int `json:"target"`
	} `json:"links"`
}

// buildMetrics validates both response bodies and assembles the metrics.
// A metadata status other than "OK" means the map has no entry for this
// token, which the caller reports as a permanent failure.
func buildMetrics(metaBody, dataBody []byte, now time.Time) (*HolderMetrics, error) {
	var meta mapMetadataResponse
	if err := json.Unmarshal(metaBody, &meta); err != nil {
		return nil, fmt.Errorf("malformed map-metadata response: %w", err)
	}
	if meta.Status != "OK" {
		return nil, fmt.Errorf("token not present in map (status %q)", meta.Status)
	}
	if meta.DecentralisationScore == nil {
		return nil, fmt.Errorf("map-metadata response missing decentralisation_score")
	}

	var data mapDataResponse
	if err := json.Unmarshal(dataBody, &data); err != nil {
		return nil, fmt.Errorf("malformed map-data response: %w", err)
	}
	if len(data.Nodes) == 0 {
		return nil, fmt.Errorf("map-data response has no holder nodes")
	}

	limit := TopHolderCount
	if len(data.Nodes) < limit {
		limit = len(data.Nodes)
	}
	holders := make([]Holder, 0, limit)
	for _, node := range data.Nodes[:limit] {
		holders = append(holders, Holder{
			Address:      node.Address,
			Name:         node.Name,
			SharePercent: node.Percentage,
			IsContract:   node.IsContract,
		})
	}

	return &HolderMetrics{
		FullName:              data.FullName,
		Symbol:                data.Symbol,
		IsNFT:                 data.IsX721,
		DecentralizationScore: *meta.DecentralisationScore,
		TopHolders:            holders,
		Supply: SupplyDistribution{
			PercentInCEXs:      meta.IdentifiedSupply.PercentInCEXs,
			PercentInContracts: meta.IdentifiedSupply.PercentInContracts,
		},
		Transfers: TransferActivity{
			LinkCount:  len(data.Links),
			LastUpdate: meta.DtUpdate,
		},
		FetchedAt: now,
	}, nil
}
