package registry

// Service is the interface for all bridge services. Start must not block;
// Stop must wait for every goroutine the service started.
type Service interface {
	Start() error
	Stop() error
}
