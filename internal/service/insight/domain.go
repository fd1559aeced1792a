package insight

import (
	"sort"
	"strings"
)

// 领域标签
const (
	DomainITInfrastructure = "it_infrastructure"
	DomainFinance          = "finance"
	DomainSales            = "sales"
	DomainHealthcare       = "healthcare"
	DomainManufacturing    = "manufacturing"
	DomainGeneral          = "general"
)

// domainProfile 领域关键词与措辞
type domainProfile struct {
	name        string
	keywords    []string
	terminology []string
	focus       string
}

// domainProfiles 按优先级排列，得分相同时靠前者胜出
var domainProfiles = []domainProfile{
	{
		name:        DomainITInfrastructure,
		keywords:    []string{"cpu", "memory", "disk", "latency", "server", "uptime", "incident", "sre", "outage", "throughput", "network", "pod", "node", "error_rate", "capacity"},
		terminology: []string{"SLO", "error budget", "capacity headroom", "saturation", "alert threshold"},
		focus:       "reliability and capacity planning",
	},
	{
		name:        DomainFinance,
		keywords:    []string{"revenue", "profit", "cost", "price", "budget", "expense", "stock", "return", "portfolio", "loan", "interest", "cash", "credit"},
		terminology: []string{"margin", "variance to budget", "run rate", "risk exposure"},
		focus:       "financial performance and risk",
	},
	{
		name:        DomainSales,
		keywords:    []string{"sales", "customer", "order", "conversion", "churn", "lead", "campaign", "quantity", "discount", "store", "product"},
		terminology: []string{"pipeline", "conversion rate", "average order value", "customer lifetime value"},
		focus:       "demand and customer behaviour",
	},
	{
		name:        DomainHealthcare,
		keywords:    []string{"patient", "diagnosis", "hospital", "treatment", "blood", "heart", "glucose", "clinical", "disease", "bmi", "age"},
		terminology: []string{"patient outcome", "risk factor", "readmission", "clinical threshold"},
		focus:       "patient outcomes",
	},
	{
		name:        DomainManufacturing,
		keywords:    []string{"defect", "machine", "production", "yield", "temperature", "pressure", "sensor", "vibration", "maintenance", "assembly", "scrap"},
		terminology: []string{"yield", "downtime", "OEE", "preventive maintenance"},
		focus:       "production quality and equipment health",
	},
}

// DomainInfo 领域识别结果
type DomainInfo struct {
	Domain      string   `json:"domain"`
	Confidence  float64  `json:"confidence"`
	Keywords    []string `json:"matched_keywords"`
	Terminology []string `json:"terminology"`
	Focus       string   `json:"focus"`
}

// DetectDomain 根据用户期望与列名中的关键词识别领域
func DetectDomain(expectation string, columns []string) DomainInfo {
	text := strings.ToLower(expectation + " " + strings.Join(columns, " "))
	tokens := tokenize(text)

	best := DomainInfo{Domain: DomainGeneral, Keywords: []string{}, Terminology: []string{}, Focus: "general trends"}
	bestScore := 0
	for _, p := range domainProfiles {
		var matched []string
		for _, kw := range p.keywords {
			if strings.Contains(kw, "_") {
				if strings.Contains(text, kw) {
					matched = append(matched, kw)
				}
				continue
			}
			if tokens[kw] {
				matched = append(matched, kw)
			}
		}
		if len(matched) > bestScore {
			bestScore = len(matched)
			sort.Strings(matched)
			best = DomainInfo{
				Domain:      p.name,
				Keywords:    matched,
				Terminology: p.terminology,
				Focus:       p.focus,
			}
		}
	}
	if bestScore > 0 {
		best.Confidence = float64(bestScore) / float64(bestScore+2)
		best.Confidence = float64(int(best.Confidence*100)) / 100
	}
	return best
}

// tokenize 按非字母数字切分，同时保留单复数的词干
func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make(map[string]bool, len(fields)*2)
	for _, f := range fields {
		out[f] = true
		if strings.HasSuffix(f, "s") && len(f) > 3 {
			out[strings.TrimSuffix(f, "s")] = true
		}
	}
	return out
}
