package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/geonexus/extractd/domain"
	"github.com/geonexus/extractd/plugin"
	"github.com/geonexus/extractd/store"
)

// ImportProcessor fetches waiting orders from a connector's source system
// and turns each one into an imported request.
type ImportProcessor struct {
	requests   *store.RequestStore
	connectors *store.ConnectorStore
	registry   *plugin.Registry
	locale     string
	logger     *zap.SugaredLogger

	// now is replaceable in tests
	now func() time.Time
}

// NewImportProcessor creates the import processor.
func NewImportProcessor(requests *store.RequestStore, connectors *store.ConnectorStore,
	registry *plugin.Registry, locale string, logger *zap.SugaredLogger) *ImportProcessor {
	return &ImportProcessor{
		requests:   requests,
		connectors: connectors,
		registry:   registry,
		locale:     locale,
		logger:     logger,
		now:        time.Now,
	}
}

// Process runs one import pass for the given connector instance. Orders that
// cannot be stored are logged and skipped; the connector's last import
// timestamp advances on every attempted pass.
func (p *ImportProcessor) Process(ctx context.Context, connector *domain.Connector) {
	template, err := p.registry.Connector(connector.ConnectorCode)
	if err != nil {
		p.logger.Errorw("Connector plugin unavailable, skipping import",
			"connector_id", connector.ID,
			"connector_code", connector.ConnectorCode,
			"error", err)
		return
	}

	params, err := plugin.UnmarshalParamValues(connector.ConnectorParams)
	if err != nil {
		p.logger.Errorw("Invalid connector parameters, skipping import",
			"connector_id", connector.ID, "error", err)
		return
	}

	result := p.importOrders(template.NewInstance(p.locale, params), connector)
	if !result.Success {
		p.logger.Warnw("Order import failed",
			"connector_id", connector.ID, "message", result.ErrorMessage)
	} else {
		for _, order := range result.Orders {
			if ctx.Err() != nil {
				return
			}
			p.storeOrder(connector, order)
		}
	}

	if err := p.connectors.SetLastImport(connector.ID, p.now()); err != nil {
		p.logger.Errorw("Failed to record import pass",
			"connector_id", connector.ID, "error", err)
	}
}

func (p *ImportProcessor) importOrders(instance plugin.Connector,
	connector *domain.Connector) (result plugin.ImportResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorw("Connector plugin panicked during import",
				"connector_id", connector.ID, "panic", r)
			result = plugin.ImportResult{Success: false}
		}
	}()

	return instance.ImportOrders()
}

func (p *ImportProcessor) storeOrder(connector *domain.Connector, order plugin.ImportedOrder) {
	request := &domain.Request{
		ConnectorID: connector.ID,
		OrderLabel:  order.OrderLabel,
		Client:      order.Client,
		Perimeter:   order.Perimeter,
		Parameters:  order.Parameters,
		Status:      domain.StatusImported,
		StartDate:   p.now(),
	}

	if err := p.requests.Create(request); err != nil {
		p.logger.Errorw("Failed to store imported order",
			"connector_id", connector.ID,
			"order_label", order.OrderLabel,
			"error", err)
		return
	}

	p.logger.Infow("Order imported",
		"connector_id", connector.ID,
		"request_id", request.ID,
		"order_label", order.OrderLabel)
}
