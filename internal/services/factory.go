package services

import (
	"payment-terminal/internal/config"
	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/services/mock"
	"payment-terminal/internal/services/real"
)

// CreateClients creates the appropriate remote-invoker and subscribe-client
// implementations based on configuration.
// Returns RemoteInvoker, SubscribeClient.
func CreateClients(cfg *config.ParsedConfig) (interfaces.RemoteInvoker, interfaces.SubscribeClient) {
	if cfg.StandaloneMode {
		// Standalone mode: canned remote responses and a silent broker,
		// so the terminal can be exercised without external services.
		return mock.NewMockInvoker(cfg.Server.Verbose), mock.NewMockBroker(cfg.Server.Verbose)
	}

	return real.NewTLSInvoker(cfg.Server.Verbose), real.NewMQTTClient(cfg.Server.Verbose)
}

// EndpointsFromConfig maps the parsed configuration onto the service-layer
// endpoint set.
func EndpointsFromConfig(cfg *config.ParsedConfig) Endpoints {
	return Endpoints{
		SettlementProductionURL: cfg.Settlement.ProductionURL,
		SettlementTestURL:       cfg.Settlement.TestURL,
		BrokerProductionURL:     cfg.Broker.ProductionURL,
		BrokerTestURL:           cfg.Broker.TestURL,
		CAProductionPath:        cfg.CABundles.ProductionPath,
		CATestPath:              cfg.CABundles.TestPath,
		RemoteTimeout:           cfg.RemoteTimeout,
		ListenWindow:            cfg.ListenWindow,
	}
}
