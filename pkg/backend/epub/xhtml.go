package epub

import (
	"bufio"
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// splitProlog 把 <html 之前的 XML 声明与 DOCTYPE 原样分离出来
func splitProlog(content []byte) (prolog, body []byte) {
	i := bytes.Index(bytes.ToLower(content), []byte("<html"))
	if i <= 0 {
		return nil, content
	}
	return content[:i], content[i:]
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var rawElements = map[string]bool{"script": true, "style": true}

// expandSelfClosing 把非空元素的自闭合写法 <a id="x"/> 展开为 <a id="x"></a>。
// HTML5 解析器忽略非空元素上的 "/>"，否则后续兄弟节点会被吞进该元素。
func expandSelfClosing(body []byte) []byte {
	z := html.NewTokenizer(bytes.NewReader(body))
	var out bytes.Buffer
	out.Grow(len(body) + 64)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return body
			}
			return out.Bytes()
		}
		raw := z.Raw()
		if tt == html.SelfClosingTagToken {
			name, _ := z.TagName()
			if !voidElements[string(name)] && bytes.HasSuffix(raw, []byte("/>")) {
				out.Write(raw[:len(raw)-2])
				out.WriteString("></")
				out.Write(name)
				out.WriteByte('>')
				continue
			}
		}
		out.Write(raw)
	}
}

// renderXHTML 以 XML 语法序列化节点：空元素自闭合，文本与属性转义
func renderXHTML(w io.Writer, n *html.Node) error {
	bw := bufio.NewWriter(w)
	writeNode(bw, n)
	return bw.Flush()
}

func writeNode(w *bufio.Writer, n *html.Node) {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(w, c)
		}
	case html.DoctypeNode:
		// DOCTYPE 保留在 prolog 中
	case html.CommentNode:
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->")
	case html.TextNode:
		if n.Parent != nil && n.Parent.Type == html.ElementNode && rawElements[n.Parent.Data] {
			w.WriteString(n.Data)
			return
		}
		w.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		w.WriteByte('<')
		w.WriteString(n.Data)
		for _, a := range n.Attr {
			w.WriteByte(' ')
			if a.Namespace != "" {
				w.WriteString(a.Namespace)
				w.WriteByte(':')
			}
			w.WriteString(a.Key)
			w.WriteString(`="`)
			w.WriteString(html.EscapeString(a.Val))
			w.WriteByte('"')
		}
		if n.FirstChild == nil && (voidElements[n.Data] || n.Namespace != "") {
			w.WriteString("/>")
			return
		}
		w.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(w, c)
		}
		w.WriteString("</")
		w.WriteString(n.Data)
		w.WriteByte('>')
	}
}
