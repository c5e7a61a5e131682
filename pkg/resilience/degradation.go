package resilience

import (
	"sync"
	"time"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
)

// DegradationLevel represents the level of service degradation
type DegradationLevel int

const (
	// LevelNormal - all services are operational
	LevelNormal DegradationLevel = iota
	// LevelPartial - one fragment producer is failing, results carry its fallback
	LevelPartial
	// LevelSevere - significant degradation, most results are fallbacks
	LevelSevere
	// LevelCritical - every producer is failing, only the fixed degraded result is served
	LevelCritical
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelPartial:
		return "PARTIAL"
	case LevelSevere:
		return "SEVERE"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ServiceHealth represents the health status of an upstream
type ServiceHealth struct {
	Name         string        `json:"name"`
	Healthy      bool          `json:"healthy"`
	LastCheck    time.Time     `json:"last_check"`
	ErrorCount   int           `json:"error_count"`
	ResponseTime time.Duration `json:"response_time"`
	Message      string        `json:"message,omitempty"`
	CircuitState string        `json:"circuit_state"`
}

// DegradationManager manages service degradation based on health status
type DegradationManager struct {
	services map[string]*ServiceHealth
	mutex    sync.RWMutex
	logger   *logging.Logger

	unhealthyThreshold int
	degradationRules   map[string]DegradationLevel
}

// NewDegradationManager creates a new degradation manager
func NewDegradationManager() *DegradationManager {
	return &DegradationManager{
		services:           make(map[string]*ServiceHealth),
		logger:             logging.GetLogger(),
		unhealthyThreshold: 3,
		degradationRules:   make(map[string]DegradationLevel),
	}
}

// RegisterService registers a service for health monitoring
func (dm *DegradationManager) RegisterService(name string, degradationLevel DegradationLevel) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.services[name] = &ServiceHealth{
		Name:         name,
		Healthy:      true,
		LastCheck:    time.Now(),
		CircuitState: StateClosed.String(),
	}
	dm.degradationRules[name] = degradationLevel
}

// UpdateServiceHealth updates the health status of a service
func (dm *DegradationManager) UpdateServiceHealth(name string, healthy bool, responseTime time.Duration, message string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	service, exists := dm.services[name]
	if !exists {
		dm.logger.Warn("Attempted to update health for unregistered service", "service", name)
		return
	}

	service.LastCheck = time.Now()
	service.ResponseTime = responseTime
	service.Message = message

	if healthy {
		service.Healthy = true
		service.ErrorCount = 0
	} else {
		service.ErrorCount++
		if service.ErrorCount >= dm.unhealthyThreshold {
			service.Healthy = false
		}
	}

	dm.logger.Debug("Service health updated",
		"service", name,
		"healthy", service.Healthy,
		"error_count", service.ErrorCount,
		"response_time", responseTime,
		"message", message,
	)
}

// ObserveInvocation folds an invoker report into the service health.
// An open circuit marks the service unhealthy immediately. Abandoned calls
// are ignored.
func (dm *DegradationManager) ObserveInvocation(report InvocationReport) {
	if report.Abandoned {
		return
	}

	message := "OK"
	if report.Err != nil {
		message = report.Err.Error()
	}
	dm.UpdateServiceHealth(report.Name, report.Success, report.Duration, message)

	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	service, exists := dm.services[report.Name]
	if !exists {
		return
	}
	service.CircuitState = report.State.String()
	if report.State == StateOpen {
		service.Healthy = false
	}
}

// GetCurrentDegradationLevel returns the current system degradation level
func (dm *DegradationManager) GetCurrentDegradationLevel() DegradationLevel {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	maxLevel := LevelNormal
	unhealthyServices := 0
	totalServices := len(dm.services)

	for name, service := range dm.services {
		if !service.Healthy {
			unhealthyServices++
			if level, exists := dm.degradationRules[name]; exists && level > maxLevel {
				maxLevel = level
			}
		}
	}

	// Escalate on the share of unhealthy services
	if totalServices > 0 && unhealthyServices > 0 {
		switch {
		case unhealthyServices == totalServices:
			maxLevel = LevelCritical
		case float64(unhealthyServices)/float64(totalServices) > 0.5 && maxLevel < LevelSevere:
			maxLevel = LevelSevere
		case maxLevel < LevelPartial:
			maxLevel = LevelPartial
		}
	}

	return maxLevel
}

// GetServiceHealth returns the health status of a specific service
func (dm *DegradationManager) GetServiceHealth(name string) (*ServiceHealth, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	service, exists := dm.services[name]
	if !exists {
		return nil, false
	}

	copied := *service
	return &copied, true
}
