// internal/engine/assembler.go
package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
	"github.com/zarzn/dealbot-be-sub000/internal/models"
	"github.com/zarzn/dealbot-be-sub000/internal/textutil"
)

// Blend weights for candidates backed by a known deal. Relevance to the
// query dominates; the stored deal quality nudges the order.
const (
	blendMatchingWeight = 0.7
	blendDealWeight     = 0.3
)

// assembler turns scored candidates into the final ranked, deduplicated,
// paginated response.
type assembler struct {
	deals  DealReader
	logger logger.Logger
}

// assemble builds the ordered deal list. Candidates that resolve to an
// expired or unavailable deal are dropped; candidates with a negative
// price violate the price contract and are dropped with a warning.
func (a *assembler) assemble(ctx context.Context, cands []models.ScoredCandidate) []models.RankedDeal {
	ranked := make([]models.RankedDeal, 0, len(cands))
	for _, sc := range cands {
		if sc.Product.Price < 0 {
			a.logger.Warn("dropping product with negative price", map[string]interface{}{
				"market": sc.Product.MarketID,
				"title":  textutil.Truncate(sc.Product.Title, 60),
			})
			continue
		}

		rd := models.RankedDeal{
			Product:        sc.Product,
			RelevanceScore: sc.RelevanceScore,
			MatchingScore:  sc.MatchingScore,
			FinalScore:     sc.MatchingScore,
			MatchedTerms:   sc.MatchedTerms,
		}

		if keep := a.mergeDealScore(ctx, &rd); !keep {
			continue
		}
		ranked = append(ranked, rd)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return dedupe(ranked)
}

// mergeDealScore blends the stored deal score into the final score when
// the candidate maps onto a known deal. Lookup failures leave the
// relevance-only score in place. Returns false when the deal exists but is
// no longer active.
func (a *assembler) mergeDealScore(ctx context.Context, rd *models.RankedDeal) bool {
	if a.deals == nil {
		return true
	}
	dealID, _ := rd.Product.RawMetadata["deal_id"].(string)
	if dealID == "" {
		return true
	}

	deal, err := a.deals.GetDeal(ctx, dealID)
	if err != nil {
		a.logger.WithError(err).Debug("deal lookup failed during assembly", map[string]interface{}{
			"dealId": dealID,
		})
		return true
	}
	if deal.Status != models.DealStatusActive {
		return false
	}
	if deal.LatestScore == nil {
		return true
	}

	hundred := *deal.LatestScore * 100
	rd.DealScore = &hundred
	rd.FinalScore = blendMatchingWeight*rd.MatchingScore + blendDealWeight**deal.LatestScore
	return true
}

// dedupe removes duplicates, first by market+url, then by normalized
// title. Input is already ordered best-first, so the strongest entry of
// each duplicate group survives.
func dedupe(ranked []models.RankedDeal) []models.RankedDeal {
	seenURL := make(map[string]struct{}, len(ranked))
	seenTitle := make(map[string]struct{}, len(ranked))
	out := ranked[:0]
	for _, rd := range ranked {
		if rd.Product.URL != "" {
			key := rd.Product.MarketID + "|" + strings.ToLower(rd.Product.URL)
			if _, dup := seenURL[key]; dup {
				continue
			}
			seenURL[key] = struct{}{}
		}

		title := textutil.Normalize(rd.Product.Title)
		if title != "" {
			if _, dup := seenTitle[title]; dup {
				continue
			}
			seenTitle[title] = struct{}{}
		}
		out = append(out, rd)
	}
	return out
}

// paginate slices the ranked list into the requested page and fills the
// count metadata.
func paginate(ranked []models.RankedDeal, page, pageSize int, res *models.SearchResult) {
	if page < 1 {
		page = 1
	}
	total := len(ranked)
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	res.Deals = ranked[start:end]
	if res.Deals == nil {
		res.Deals = []models.RankedDeal{}
	}
	res.Count = len(res.Deals)
	res.Total = total
	res.Page = page
	res.Pages = pages
}
