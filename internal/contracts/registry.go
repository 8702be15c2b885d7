package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ServiceRegistryClient binds to the ServiceRegistry contract:
// keyed by service_id_hash, owner-only register, provider-or-owner
// update/deactivate (spec.md §4.6).
type ServiceRegistryClient struct {
	*Client
}

// NewServiceRegistryClient binds a ServiceRegistryClient to address.
func NewServiceRegistryClient(backend Backend, address common.Address) (*ServiceRegistryClient, error) {
	c, err := NewClient(backend, address, serviceRegistryABI)
	if err != nil {
		return nil, err
	}
	return &ServiceRegistryClient{c}, nil
}

// RegisteredService mirrors the on-chain `services` mapping entry.
type RegisteredService struct {
	Provider  common.Address
	Price     *big.Int
	Name      string
	Endpoint  string
	Active    bool
	CreatedAt *big.Int
}

// Get reads a service record from the registry.
func (c *ServiceRegistryClient) Get(ctx context.Context, serviceIDHash common.Hash) (*RegisteredService, error) {
	data, err := c.ABI.Pack("services", serviceIDHash)
	if err != nil {
		return nil, err
	}
	to := c.Address
	result, err := c.Backend.CallContract(ctx, callMsg(&to, data), nil)
	if err != nil {
		return nil, err
	}
	values, err := c.ABI.Methods["services"].Outputs.Unpack(result)
	if err != nil {
		return nil, err
	}
	return &RegisteredService{
		Provider:  values[0].(common.Address),
		Price:     values[1].(*big.Int),
		Name:      values[2].(string),
		Endpoint:  values[3].(string),
		Active:    values[4].(bool),
		CreatedAt: values[5].(*big.Int),
	}, nil
}

// Register calls the owner-only register(serviceIdHash, provider,
// price, name, endpoint). Once created, provider is immutable
// on-chain (spec.md §4.6).
func (c *ServiceRegistryClient) Register(ctx context.Context, opts *bind.TransactOpts, gasLimit uint64, serviceIDHash common.Hash, provider common.Address, price *big.Int, name, endpoint string) (string, error) {
	tx, err := c.SignedSend(ctx, opts, gasLimit, "register", serviceIDHash, provider, price, name, endpoint)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// SetActive toggles a service's active flag (provider or owner).
func (c *ServiceRegistryClient) SetActive(ctx context.Context, opts *bind.TransactOpts, gasLimit uint64, serviceIDHash common.Hash, active bool) (string, error) {
	tx, err := c.SignedSend(ctx, opts, gasLimit, "setActive", serviceIDHash, active)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}

// UpdatePrice updates a service's price (provider or owner).
func (c *ServiceRegistryClient) UpdatePrice(ctx context.Context, opts *bind.TransactOpts, gasLimit uint64, serviceIDHash common.Hash, price *big.Int) (string, error) {
	tx, err := c.SignedSend(ctx, opts, gasLimit, "updatePrice", serviceIDHash, price)
	if err != nil {
		return "", err
	}
	return tx.Hash().Hex(), nil
}
