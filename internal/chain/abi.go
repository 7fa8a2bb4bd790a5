package chain

const registryABIJSON = `[
  {
    "type": "function",
    "name": "getAllSkills",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "skillId", "type": "uint256"},
          {"name": "creator", "type": "address"},
          {"name": "pricePerUse", "type": "uint256"},
          {"name": "metadataURI", "type": "string"},
          {"name": "isActive", "type": "bool"},
          {"name": "totalCalls", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getSkill",
    "stateMutability": "view",
    "inputs": [{"name": "skillId", "type": "uint256"}],
    "outputs": [
      {"name": "skillId", "type": "uint256"},
      {"name": "creator", "type": "address"},
      {"name": "pricePerUse", "type": "uint256"},
      {"name": "metadataURI", "type": "string"},
      {"name": "isActive", "type": "bool"},
      {"name": "totalCalls", "type": "uint256"}
    ]
  }
]`

const paymentABIJSON = `[
  {
    "type": "function",
    "name": "payForSkill",
    "stateMutability": "payable",
    "inputs": [{"name": "skillId", "type": "uint256"}],
    "outputs": []
  }
]`
