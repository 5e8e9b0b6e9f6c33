package curation

import "regexp"

// defaultPositiveKeywords raise relevance for the business-oriented audience.
// Config may override the list entirely.
var defaultPositiveKeywords = []string{
	// business
	"business", "empresa", "negócio", "negocio", "company", "startup",
	"empreendedor", "entrepreneur", "revenue", "receita", "profit",
	"marketing", "sales", "vendas", "roi", "produtividade", "productivity",
	"eficiência", "efficiency", "automação", "automation", "workflow",
	// economic sectors
	"indústria", "industry", "manufatura", "manufacturing", "agro",
	"agronegócio", "agribusiness", "comércio", "commerce", "retail",
	"varejo", "serviços", "services", "logística", "logistics",
	"supply chain", "cadeia de suprimentos",
	// applied AI
	"ai tool", "ferramenta de ia", "chatgpt", "copilot", "assistente",
	"assistant", "no-code", "low-code", "ai agent", "agente de ia",
	"prompt", "generative ai", "ia generativa",
	// practical impact
	"how to", "como usar", "tutorial", "guia", "guide", "dica", "tip",
	"case study", "caso de uso", "use case", "example", "exemplo",
	"free", "grátis", "gratuito", "launch", "lançamento", "new tool",
	"nova ferramenta", "trending", "future", "futuro",
	// HR and management
	"hr", "recursos humanos", "human resources", "manager", "gestor",
	"gestão", "management", "team", "equipe", "hiring", "contratação",
	"career", "carreira",
}

// defaultNegativeKeywords mark content too technical for the audience.
var defaultNegativeKeywords = []string{
	"arxiv", "paper", "benchmark", "fine-tune", "fine-tuning",
	"transformer", "attention mechanism", "gradient", "backpropagation",
	"pytorch", "tensorflow", "cuda", "gpu cluster", "training loss",
	"epoch", "hyperparameter", "rlhf", "token limit", "context window",
	"embedding", "vector database", "rag pipeline", "langchain",
	"llama weights", "model weights", "checkpoint", "quantization",
	"inference speed", "vram", "kernel", "compiler", "assembly",
	"leetcode", "algorithm", "data structure",
}

// spamPatterns drop items outright before scoring.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)onlyfans`),
	regexp.MustCompile(`(?i)crypto.*pump`),
	regexp.MustCompile(`(?i)free money`),
	regexp.MustCompile(`(?i)click here to win`),
	regexp.MustCompile(`(?i)subscribe.*free`),
	regexp.MustCompile(`(?i)\$\d+.*per day`),
	regexp.MustCompile(`(?i)get rich`),
}
