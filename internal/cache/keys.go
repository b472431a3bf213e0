package cache

import "strconv"

const keyNamespace = "pokemon"

// ListKey is the cache key of one listing page:
// pokemon:list:limit:<L>:offset:<O>
func ListKey(limit, offset int) string {
	return keyNamespace + ":list:limit:" + strconv.Itoa(limit) + ":offset:" + strconv.Itoa(offset)
}

// DetailKey is the cache key of one entity: pokemon:byName:<name>.
// name must already be normalized.
func DetailKey(name string) string {
	return keyNamespace + ":byName:" + name
}
