package message

// Kind tags the payload of an envelope.
type Kind uint8

const (
	KindUnknown Kind = iota

	KindGetRequest
	KindPutRequest
	KindDeleteRequest
	KindGetVersionsRequest
	KindGetBranchRequest
	KindPutVersionRequest
	KindCreateVersionTreeRequest
	KindCreateAccountRequest
	KindRemoveAccountRequest
	KindRegisterPmidRequest
	KindUnregisterPmidRequest
	KindPmidHealthRequest

	KindGetResponse
	KindGetCachedResponse
	KindPutResponse
	KindPutFailure
	KindGetVersionsResponse
	KindGetBranchResponse
	KindPutVersionResponse
	KindCreateVersionTreeResponse
	KindPmidHealthResponse
	KindCreateAccountResponse
	KindRegisterPmidResponse

	kindMax
)

var kindNames = [...]string{
	KindUnknown:                   "unknown",
	KindGetRequest:                "get_request",
	KindPutRequest:                "put_request",
	KindDeleteRequest:             "delete_request",
	KindGetVersionsRequest:        "get_versions_request",
	KindGetBranchRequest:          "get_branch_request",
	KindPutVersionRequest:         "put_version_request",
	KindCreateVersionTreeRequest:  "create_version_tree_request",
	KindCreateAccountRequest:      "create_account_request",
	KindRemoveAccountRequest:      "remove_account_request",
	KindRegisterPmidRequest:       "register_pmid_request",
	KindUnregisterPmidRequest:     "unregister_pmid_request",
	KindPmidHealthRequest:         "pmid_health_request",
	KindGetResponse:               "get_response",
	KindGetCachedResponse:         "get_cached_response",
	KindPutResponse:               "put_response",
	KindPutFailure:                "put_failure",
	KindGetVersionsResponse:       "get_versions_response",
	KindGetBranchResponse:         "get_branch_response",
	KindPutVersionResponse:        "put_version_response",
	KindCreateVersionTreeResponse: "create_version_tree_response",
	KindPmidHealthResponse:        "pmid_health_response",
	KindCreateAccountResponse:     "create_account_response",
	KindRegisterPmidResponse:      "register_pmid_response",
}

func (k Kind) String() string {
	if k < kindMax {
		return kindNames[k]
	}

	return kindNames[KindUnknown]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindMax
}

func (k Kind) IsRequest() bool {
	return k >= KindGetRequest && k <= KindPmidHealthRequest
}

func (k Kind) IsResponse() bool {
	return k >= KindGetResponse && k < kindMax
}
