package contracts

// Minimal ABI fragments for the contract trio and the EIP-3009 token,
// covering only the methods the gateway calls (spec.md §4.6).

const serviceRegistryABI = `[
  {"type":"function","name":"register","stateMutability":"nonpayable","inputs":[
    {"name":"serviceIdHash","type":"bytes32"},
    {"name":"provider","type":"address"},
    {"name":"price","type":"uint256"},
    {"name":"name","type":"string"},
    {"name":"endpoint","type":"string"}
  ],"outputs":[]},
  {"type":"function","name":"updatePrice","stateMutability":"nonpayable","inputs":[
    {"name":"serviceIdHash","type":"bytes32"},
    {"name":"price","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"setActive","stateMutability":"nonpayable","inputs":[
    {"name":"serviceIdHash","type":"bytes32"},
    {"name":"active","type":"bool"}
  ],"outputs":[]},
  {"type":"function","name":"services","stateMutability":"view","inputs":[
    {"name":"serviceIdHash","type":"bytes32"}
  ],"outputs":[
    {"name":"provider","type":"address"},
    {"name":"price","type":"uint256"},
    {"name":"name","type":"string"},
    {"name":"endpoint","type":"string"},
    {"name":"active","type":"bool"},
    {"name":"createdAt","type":"uint256"}
  ]}
]`

const escrowABI = `[
  {"type":"function","name":"receivePayment","stateMutability":"nonpayable","inputs":[
    {"name":"provider","type":"address"},
    {"name":"payer","type":"address"},
    {"name":"amount","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[
    {"name":"provider","type":"address"},
    {"name":"amount","type":"uint256"}
  ],"outputs":[]},
  {"type":"function","name":"providerBalances","stateMutability":"view","inputs":[
    {"name":"provider","type":"address"}
  ],"outputs":[{"name":"balance","type":"uint256"}]},
  {"type":"function","name":"platformFeeBasisPoints","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const paymentProcessorABI = `[
  {"type":"function","name":"processPayment","stateMutability":"nonpayable","inputs":[
    {"name":"serviceIdHash","type":"bytes32"},
    {"name":"from","type":"address"},
    {"name":"value","type":"uint256"},
    {"name":"validAfter","type":"uint256"},
    {"name":"validBefore","type":"uint256"},
    {"name":"nonce","type":"bytes32"},
    {"name":"v","type":"uint8"},
    {"name":"r","type":"bytes32"},
    {"name":"s","type":"bytes32"}
  ],"outputs":[]},
  {"type":"function","name":"usedNonces","stateMutability":"view","inputs":[
    {"name":"payer","type":"address"},
    {"name":"nonce","type":"bytes32"}
  ],"outputs":[{"name":"used","type":"bool"}]}
]`

const tokenABI = `[
  {"type":"function","name":"receiveWithAuthorization","stateMutability":"nonpayable","inputs":[
    {"name":"from","type":"address"},
    {"name":"to","type":"address"},
    {"name":"value","type":"uint256"},
    {"name":"validAfter","type":"uint256"},
    {"name":"validBefore","type":"uint256"},
    {"name":"nonce","type":"bytes32"},
    {"name":"v","type":"uint8"},
    {"name":"r","type":"bytes32"},
    {"name":"s","type":"bytes32"}
  ],"outputs":[]},
  {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`
